package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/fallback"
	"github.com/booomerangs/relay/pkg/observability"
)

// Request is the dispatcher's input.
type Request struct {
	// Payload is the message text or image prompt. Must be non-empty.
	Payload string

	// Kind selects the adapter pool (text or image).
	Kind adapter.Kind

	// PinnedAdapter, when set, bypasses the cascade: only the named
	// adapter (then the fallback) is tried.
	PinnedAdapter string

	// Options are passed through to the adapter unchanged.
	Options api.Options
}

// Result is the dispatcher's normalized output. Success implies non-empty
// Content. AdapterName is "fallback" when the cascade was exhausted.
type Result struct {
	Success     bool
	Content     string
	AdapterName string
	ModelName   string
}

// Config tunes the cascade. The zero value gets sensible defaults.
type Config struct {
	// BackoffBase is the first wait between retries of one adapter.
	// Subsequent waits double. Default 500ms.
	BackoffBase time.Duration

	// BackoffMax caps a single backoff wait. Default 8s.
	BackoffMax time.Duration

	// RetryCap bounds any adapter's configured MaxRetries. Default 3.
	RetryCap int

	// ChunkWords is the word-group size used when re-chunking a
	// non-streaming result for the streaming path. Default 3.
	ChunkWords int

	// ChunkDelay is the pause between re-chunked deltas. Default 100ms.
	ChunkDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.BackoffBase == 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 8 * time.Second
	}
	if c.RetryCap == 0 {
		c.RetryCap = 3
	}
	if c.ChunkWords == 0 {
		c.ChunkWords = 3
	}
	if c.ChunkDelay == 0 {
		c.ChunkDelay = 100 * time.Millisecond
	}
	return c
}

// Dispatcher resolves one request into one normalized result by cascading
// over the adapter registry. It holds no mutable state: concurrent
// dispatches are independent.
type Dispatcher struct {
	registry *adapter.Registry
	fb       *fallback.Responder
	cfg      Config
	logger   *slog.Logger
}

// New creates a Dispatcher over the given registry and fallback responder.
func New(registry *adapter.Registry, fb *fallback.Responder, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		fb:       fb,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Dispatch resolves the request. For well-formed input it returns a result
// and never an error, except when ctx is cancelled mid-flight. Empty or
// whitespace-only payload fails fast with a validation error before any
// adapter is attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	if err := api.ValidatePayload(req.Payload); err != nil {
		return nil, err
	}

	candidates := d.candidates(req)

	for _, cand := range candidates {
		res, err := d.tryAdapter(ctx, cand, req)
		if err != nil {
			// Only parent-context cancellation aborts the cascade.
			return nil, err
		}
		if res != nil {
			observability.DispatchTotal.WithLabelValues(string(req.Kind), cand.Name()).Inc()
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return d.fallbackResult(req), nil
}

// fallbackResult produces the guaranteed-success local answer.
func (d *Dispatcher) fallbackResult(req *Request) *Result {
	var r *adapter.Result
	if req.Kind == adapter.KindImage {
		r = d.fb.Image(req.Payload)
	} else {
		r = d.fb.Text(req.Payload)
	}

	observability.DispatchTotal.WithLabelValues(string(req.Kind), fallback.AdapterName).Inc()
	observability.FallbackTotal.WithLabelValues(string(req.Kind)).Inc()
	d.logger.Info("cascade exhausted, using local fallback", "kind", req.Kind)

	return &Result{
		Success:     true,
		Content:     r.Content,
		AdapterName: fallback.AdapterName,
		ModelName:   r.Model,
	}
}

// candidates builds the ordered candidate list for a request, recording
// credential skips. A pinned adapter short-circuits the cascade; a pinned
// name that is unknown or of the wrong kind yields an empty list, which
// resolves to the fallback.
func (d *Dispatcher) candidates(req *Request) []adapter.Adapter {
	if req.PinnedAdapter != "" {
		entry, ok := d.registry.Get(req.PinnedAdapter)
		if !ok || entry.Adapter.Kind() != req.Kind {
			d.logger.Warn("pinned adapter not registered for kind",
				"adapter", req.PinnedAdapter, "kind", req.Kind)
			return nil
		}
		if !entry.Available {
			d.recordSkip(entry.Adapter.Name())
			return nil
		}
		return []adapter.Adapter{entry.Adapter}
	}

	for _, name := range d.registry.Skipped(req.Kind) {
		d.recordSkip(name)
	}
	return d.registry.Candidates(req.Kind)
}

func (d *Dispatcher) recordSkip(name string) {
	observability.AdapterSkippedTotal.WithLabelValues(name).Inc()
	d.logger.Debug("adapter skipped, credential missing", "adapter", name,
		"outcome", OutcomeSkippedNoCredential)
}

// tryAdapter runs up to 1+MaxRetries attempts against one adapter with
// exponential backoff between retries. It returns (result, nil) on success,
// (nil, nil) when the adapter is exhausted and the cascade should continue,
// and (nil, err) only when the parent context was cancelled.
func (d *Dispatcher) tryAdapter(ctx context.Context, a adapter.Adapter, req *Request) (*Result, error) {
	profile := a.Profile()
	retries := profile.MaxRetries
	if retries > d.cfg.RetryCap {
		retries = d.cfg.RetryCap
	}

	bo := d.newBackoff()

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := d.waitBackoff(ctx, bo); err != nil {
				return nil, err
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res, rec := d.attemptOnce(ctx, a, req, profile.Timeout)
		d.logAttempt(req, rec, attempt, retries)

		if res != nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, nil
}

// attemptOnce runs a single bounded attempt and classifies the outcome.
func (d *Dispatcher) attemptOnce(ctx context.Context, a adapter.Adapter, req *Request, timeout time.Duration) (*Result, AttemptRecord) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Complete(attemptCtx, &adapter.Request{Payload: req.Payload, Options: req.Options})
	elapsed := time.Since(start)

	rec := AttemptRecord{AdapterName: a.Name(), Elapsed: elapsed}

	switch {
	case err == nil && res != nil && res.Content != "":
		rec.Outcome = OutcomeSuccess
	case isTimeout(attemptCtx, err):
		rec.Outcome = OutcomeTimeout
	default:
		rec.Outcome = OutcomeError
	}

	observability.AttemptsTotal.WithLabelValues(rec.AdapterName, string(rec.Outcome)).Inc()
	observability.AttemptLatency.WithLabelValues(rec.AdapterName).Observe(elapsed.Seconds())

	if rec.Outcome != OutcomeSuccess {
		return nil, rec
	}

	return &Result{
		Success:     true,
		Content:     res.Content,
		AdapterName: a.Name(),
		ModelName:   res.Model,
	}, rec
}

func (d *Dispatcher) logAttempt(req *Request, rec AttemptRecord, attempt, retries int) {
	d.logger.Info("adapter attempt",
		"adapter", rec.AdapterName,
		"kind", req.Kind,
		"attempt", attempt+1,
		"max_attempts", retries+1,
		"outcome", rec.Outcome,
		"elapsed", rec.Elapsed,
	)
}

// newBackoff builds the per-adapter retry schedule: exponential, doubling,
// no jitter, capped per wait. Jitter is deliberately disabled so retry
// timing stays deterministic and monotonically non-decreasing.
func (d *Dispatcher) newBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.BackoffBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = d.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// waitBackoff sleeps for the next backoff interval, aborting on cancellation.
func (d *Dispatcher) waitBackoff(ctx context.Context, bo backoff.BackOff) error {
	wait := bo.NextBackOff()
	if wait == backoff.Stop {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTimeout reports whether a failed attempt was bounded out by the attempt
// timeout rather than by a transport or content failure.
func isTimeout(attemptCtx context.Context, err error) bool {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == api.ErrorTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
