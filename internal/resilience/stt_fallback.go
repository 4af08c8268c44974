package resilience

import (
	"context"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker. A typical deployment
// pairs a hosted primary with a local whisper model as the last resort, so
// transcription keeps working through network outages.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs recognition against the first healthy provider. If the
// primary fails, subsequent fallbacks are tried with the same segment.
func (f *STTFallback) Transcribe(ctx context.Context, seg audio.Segment, language string) (stt.Result, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Result, error) {
		return p.Transcribe(ctx, seg, language)
	})
}
