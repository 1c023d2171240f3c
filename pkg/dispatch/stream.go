package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/api"
	"github.com/booomerangs/relay/pkg/observability"
)

// StreamChunk is one element of the streaming dispatch sequence.
//
// The sequence shape is: exactly one Info chunk announcing the live
// adapter, zero or more text chunks, then exactly one Done chunk. After a
// consumer cancellation the channel closes without a Done chunk.
type StreamChunk struct {
	// Info marks the initial adapter announcement. Info chunks carry
	// Provider and Model but no Text.
	Info bool

	// Provider is the adapter delivering the stream.
	Provider string

	// Model is the adapter-reported model identifier.
	Model string

	// Text is an incremental piece of the response.
	Text string

	// Done marks the terminal chunk. Sent exactly once per stream.
	Done bool
}

// DispatchStream resolves the request as a lazy, finite sequence of text
// chunks. It preserves the cascade and fallback policy of Dispatch:
// candidates are tried in priority order, and the local fallback is
// streamed when all of them fail.
//
// Adapters without native streaming are attempted via Complete and the
// full text is re-chunked into fixed word groups with a small delay
// between chunks. Cancelling ctx stops emission; the returned channel is
// always closed when the dispatcher is finished with it.
func (d *Dispatcher) DispatchStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	if err := api.ValidatePayload(req.Payload); err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)

	go func() {
		defer close(out)

		candidates := d.candidates(req)

		for _, cand := range candidates {
			if ctx.Err() != nil {
				return
			}

			var delivered bool
			if cand.Capabilities().Streaming {
				delivered = d.streamNative(ctx, cand, req, out)
			} else {
				delivered = d.streamRechunked(ctx, cand, req, out)
			}
			if delivered {
				observability.DispatchTotal.WithLabelValues(string(req.Kind), cand.Name()).Inc()
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		// Cascade exhausted: stream the local fallback.
		res := d.fallbackResult(req)
		d.emitRechunked(ctx, res.AdapterName, res.ModelName, res.Content, out)
	}()

	return out, nil
}

// streamNative runs the retry loop for a natively streaming adapter.
// Returns true once anything has been emitted downstream: from that point
// the stream belongs to this adapter and the cascade must not continue,
// even if the stream later fails mid-flight (the error is logged and the
// stream is terminated).
func (d *Dispatcher) streamNative(ctx context.Context, a adapter.Adapter, req *Request, out chan<- StreamChunk) bool {
	profile := a.Profile()
	retries := profile.MaxRetries
	if retries > d.cfg.RetryCap {
		retries = d.cfg.RetryCap
	}

	bo := d.newBackoff()

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := d.waitBackoff(ctx, bo); err != nil {
				return false
			}
		}
		if ctx.Err() != nil {
			return false
		}

		start := time.Now()
		events, err := a.Stream(ctx, &adapter.Request{Payload: req.Payload, Options: req.Options})
		if err != nil {
			rec := AttemptRecord{AdapterName: a.Name(), Outcome: OutcomeError, Elapsed: time.Since(start)}
			if isTimeout(ctx, err) {
				rec.Outcome = OutcomeTimeout
			}
			observability.AttemptsTotal.WithLabelValues(rec.AdapterName, string(rec.Outcome)).Inc()
			d.logAttempt(req, rec, attempt, retries)
			continue
		}

		delivered := d.pipeEvents(ctx, a, events, out)
		elapsed := time.Since(start)

		if delivered {
			observability.AttemptsTotal.WithLabelValues(a.Name(), string(OutcomeSuccess)).Inc()
			observability.AttemptLatency.WithLabelValues(a.Name()).Observe(elapsed.Seconds())
			d.logAttempt(req, AttemptRecord{AdapterName: a.Name(), Outcome: OutcomeSuccess, Elapsed: elapsed}, attempt, retries)
			return true
		}

		observability.AttemptsTotal.WithLabelValues(a.Name(), string(OutcomeError)).Inc()
		d.logAttempt(req, AttemptRecord{AdapterName: a.Name(), Outcome: OutcomeError, Elapsed: elapsed}, attempt, retries)
	}

	return false
}

// pipeEvents forwards adapter events downstream. The info chunk is sent
// before the first delta; a stream that errors before producing any delta
// is reported as undelivered so the retry/cascade policy can take over.
func (d *Dispatcher) pipeEvents(ctx context.Context, a adapter.Adapter, events <-chan adapter.Event, out chan<- StreamChunk) bool {
	var started bool
	model := ""

	for ev := range events {
		if ctx.Err() != nil {
			return started
		}

		if ev.Err != nil {
			if !started {
				return false
			}
			// Mid-stream failure after content was delivered: terminate
			// the stream; the partial answer is what the consumer gets.
			d.logger.Warn("stream failed mid-flight, terminating",
				"adapter", a.Name(), "error", ev.Err.Error())
			d.send(ctx, out, StreamChunk{Done: true, Provider: a.Name(), Model: model})
			return true
		}

		if ev.Done {
			if !started {
				return false
			}
			d.send(ctx, out, StreamChunk{Done: true, Provider: a.Name(), Model: model})
			return true
		}

		if ev.Delta == "" {
			continue
		}

		if !started {
			if ev.Model != "" {
				model = ev.Model
			}
			if !d.send(ctx, out, StreamChunk{Info: true, Provider: a.Name(), Model: model}) {
				return false
			}
			started = true
		}

		if !d.send(ctx, out, StreamChunk{Text: ev.Delta, Provider: a.Name(), Model: model}) {
			return started
		}
	}

	if started {
		// Channel closed without a done event; close out the stream.
		d.send(ctx, out, StreamChunk{Done: true, Provider: a.Name(), Model: model})
	}
	return started
}

// streamRechunked obtains a complete result through the normal retry loop
// and replays it as fixed-size word groups to preserve the illusion of
// incremental delivery.
func (d *Dispatcher) streamRechunked(ctx context.Context, a adapter.Adapter, req *Request, out chan<- StreamChunk) bool {
	res, err := d.tryAdapter(ctx, a, req)
	if err != nil || res == nil {
		return false
	}
	return d.emitRechunked(ctx, res.AdapterName, res.ModelName, res.Content, out)
}

// emitRechunked streams a complete text as word-group chunks with the
// configured inter-chunk delay, ending with the terminal done chunk.
func (d *Dispatcher) emitRechunked(ctx context.Context, provider, model, content string, out chan<- StreamChunk) bool {
	if !d.send(ctx, out, StreamChunk{Info: true, Provider: provider, Model: model}) {
		return false
	}

	chunks := Rechunk(content, d.cfg.ChunkWords)
	for i, chunk := range chunks {
		if i > 0 {
			timer := time.NewTimer(d.cfg.ChunkDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return true
			}
			timer.Stop()
		}
		if !d.send(ctx, out, StreamChunk{Text: chunk, Provider: provider, Model: model}) {
			return true
		}
	}

	d.send(ctx, out, StreamChunk{Done: true, Provider: provider, Model: model})
	return true
}

// send delivers one chunk unless the consumer has gone away.
func (d *Dispatcher) send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Rechunk splits text into groups of n words, preserving single spaces
// between words within a group. Joining the chunks with single spaces
// reproduces the whitespace-normalized text.
func Rechunk(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	if n < 1 {
		n = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
