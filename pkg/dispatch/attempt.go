package dispatch

import "time"

// Outcome classifies one adapter attempt.
type Outcome string

const (
	// OutcomeSuccess marks an attempt that produced usable content.
	OutcomeSuccess Outcome = "success"

	// OutcomeTimeout marks an attempt that exceeded the adapter timeout.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeError marks a transport or malformed-response failure.
	OutcomeError Outcome = "error"

	// OutcomeSkippedNoCredential marks an adapter that was never attempted
	// because its required credential is not configured.
	OutcomeSkippedNoCredential Outcome = "skipped-no-credential"
)

// AttemptRecord describes one adapter attempt during a dispatch. Records
// exist for logging and metrics only; they are discarded when the call
// returns.
type AttemptRecord struct {
	AdapterName string
	Outcome     Outcome
	Elapsed     time.Duration
}
