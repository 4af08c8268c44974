// Package transcriber turns speech segments into transcript entries.
//
// It wraps an [stt.Provider] with a per-attempt deadline, bounded retries with
// exponential backoff, and an optional circuit breaker. Transcribe never
// returns an error: failures are reported as entries with a timeout or error
// status so the transcript stays gap-free regardless of backend health.
package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jperram92/JamesConvoBot/internal/resilience"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
)

// Default timing parameters.
const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithTimeout sets the per-attempt deadline. Defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcriber) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed attempt is retried. Zero means
// a single attempt. Defaults to 2.
func WithMaxRetries(n int) Option {
	return func(t *Transcriber) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithBackoff sets the initial and maximum retry backoff. The delay doubles
// each retry up to max. Defaults to 500ms initial, 5s max.
func WithBackoff(initial, max time.Duration) Option {
	return func(t *Transcriber) {
		if initial > 0 {
			t.backoff = initial
		}
		if max > 0 {
			t.maxBackoff = max
		}
	}
}

// WithLanguage sets the language hint passed to the backend on every call.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithCircuitBreaker routes every backend call through the given breaker.
// While the breaker is open, segments fail fast with an error entry instead
// of burning retries against a dead backend.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(t *Transcriber) { t.breaker = cb }
}

// Transcriber converts segments into transcript entries using a speech-to-text
// backend. Safe for concurrent use when the underlying provider is.
type Transcriber struct {
	provider   stt.Provider
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	breaker    *resilience.CircuitBreaker

	mu       sync.RWMutex
	language string
}

// New creates a Transcriber around the given provider.
func New(p stt.Provider, opts ...Option) *Transcriber {
	t := &Transcriber{
		provider:   p,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Language returns the language hint currently passed to the backend.
func (t *Transcriber) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.language
}

// SetLanguage swaps the language hint at runtime (config hot reload). Takes
// effect on the next backend call.
func (t *Transcriber) SetLanguage(lang string) {
	t.mu.Lock()
	t.language = lang
	t.mu.Unlock()
}

// Transcribe runs the segment through the backend and returns a transcript
// entry carrying the segment's capture timestamps. On success the entry has
// status ok; after exhausting retries it has status timeout (deadline
// exceeded on the final attempt) or error, with empty text.
func (t *Transcriber) Transcribe(ctx context.Context, seg audio.Segment) transcript.Entry {
	entry := transcript.Entry{
		Start: seg.Start,
		End:   seg.End,
	}

	backoff := t.backoff
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				entry.Status = classify(ctx.Err())
				return entry
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > t.maxBackoff {
				backoff = t.maxBackoff
			}
		}

		res, err := t.attempt(ctx, seg)
		if err == nil {
			entry.Text = res.Text
			entry.Confidence = res.Confidence
			entry.Status = transcript.StatusOK
			return entry
		}
		lastErr = err

		if errors.Is(err, resilience.ErrCircuitOpen) {
			// The breaker rejects without calling the backend; retrying
			// within this segment's budget is pointless.
			slog.Warn("transcription rejected by open circuit",
				"segment_seq", seg.Seq)
			break
		}
		if ctx.Err() != nil {
			break
		}

		slog.Warn("transcription attempt failed",
			"segment_seq", seg.Seq,
			"attempt", attempt+1,
			"max_attempts", t.maxRetries+1,
			"error", err,
		)
	}

	entry.Status = classify(lastErr)
	slog.Error("transcription failed",
		"segment_seq", seg.Seq,
		"status", entry.Status,
		"error", lastErr,
	)
	return entry
}

// attempt performs one backend call under the per-attempt deadline, routed
// through the breaker when one is configured.
func (t *Transcriber) attempt(ctx context.Context, seg audio.Segment) (stt.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	language := t.Language()
	if t.breaker == nil {
		return t.provider.Transcribe(callCtx, seg, language)
	}

	var res stt.Result
	err := t.breaker.Execute(func() error {
		var callErr error
		res, callErr = t.provider.Transcribe(callCtx, seg, language)
		return callErr
	})
	return res, err
}

// classify maps the final attempt's error to an entry status.
func classify(err error) transcript.Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return transcript.StatusTimeout
	}
	return transcript.StatusError
}
