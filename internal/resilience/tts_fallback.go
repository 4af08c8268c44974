package resilience

import (
	"context"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker. The configured voice
// name only applies to the first backend attempted; later fallbacks receive an
// empty voice and use their own defaults, since voice identifiers do not
// transfer across vendors.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text against the first healthy provider. The voice is
// forwarded only to the first attempt; later attempts get the default voice.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice string) (tts.Clip, error) {
	first := true
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Clip, error) {
		v := voice
		if !first {
			v = ""
		}
		first = false
		return p.Synthesize(ctx, text, v)
	})
}
