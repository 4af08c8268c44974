// Package mock provides an in-memory mock implementation of [tts.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests
// can assert on call counts and arguments, and exposes exported fields the
// test can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// SynthesizeCall records the arguments of a single Synthesize invocation.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice argument passed to Synthesize.
	Voice string
}

// Provider is a mock implementation of [tts.Provider].
// Set the exported fields before use; inspect Calls after.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize.
	Clip tts.Clip

	// Err is returned by Synthesize.
	Err error

	// Delay, when set, makes Synthesize wait on it before returning.
	// Useful for timeout tests: return ctx.Err() to simulate a hang.
	Delay func(ctx context.Context) error

	// Calls records all Synthesize invocations.
	Calls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements [tts.Provider]. Records the call and returns the
// configured clip.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) (tts.Clip, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	delay := p.Delay
	clip, err := p.Clip, p.Err
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return tts.Clip{}, derr
		}
	}
	return clip, err
}

// CallCount returns the number of Synthesize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastText returns the text of the most recent call, or "" when none.
func (p *Provider) LastText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return ""
	}
	return p.Calls[len(p.Calls)-1].Text
}
