// Package mock provides an in-memory mock implementation of [stt.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests
// can assert on call counts and arguments, and exposes exported fields the
// test can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
)

// TranscribeCall records the arguments of a single Transcribe invocation.
type TranscribeCall struct {
	// Segment is the segment passed to Transcribe.
	Segment audio.Segment
	// Language is the language argument passed to Transcribe.
	Language string
}

// Provider is a mock implementation of [stt.Provider].
// Set the exported fields before use; inspect Calls after.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when ResultFunc is nil.
	Result stt.Result

	// Err is returned by Transcribe when ResultFunc is nil.
	Err error

	// ResultFunc, when set, computes the result per call (keyed by call
	// index, starting at 0). It overrides Result/Err.
	ResultFunc func(call int, seg audio.Segment) (stt.Result, error)

	// Delay, when set, makes Transcribe wait on it before returning.
	// Useful for timeout tests: return ctx.Err() to simulate a hang.
	Delay func(ctx context.Context) error

	// Calls records all Transcribe invocations.
	Calls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements [stt.Provider]. Records the call and returns the
// configured result.
func (p *Provider) Transcribe(ctx context.Context, seg audio.Segment, language string) (stt.Result, error) {
	p.mu.Lock()
	call := len(p.Calls)
	p.Calls = append(p.Calls, TranscribeCall{Segment: seg, Language: language})
	delay := p.Delay
	fn := p.ResultFunc
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return stt.Result{}, derr
		}
	}
	if fn != nil {
		return fn(call, seg)
	}
	return res, err
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
