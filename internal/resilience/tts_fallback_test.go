package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
	ttsmock "github.com/jperram92/JamesConvoBot/pkg/provider/tts/mock"
)

func TestTTSFallback_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{Clip: tts.Clip{PCM: []byte{1, 2}, SampleRate: 16000, Channels: 1}}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	clip, err := fb.Synthesize(context.Background(), "hello", "alloy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clip.PCM) != 2 {
		t.Errorf("PCM len = %d, want 2", len(clip.PCM))
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 0 {
		t.Fatalf("calls = %d/%d, want 1/0", primary.CallCount(), secondary.CallCount())
	}
	if primary.Calls[0].Voice != "alloy" {
		t.Errorf("primary voice = %q, want %q", primary.Calls[0].Voice, "alloy")
	}
}

func TestTTSFallback_FailoverUsesDefaultVoice(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("primary down")}
	secondary := &ttsmock.Provider{Clip: tts.Clip{PCM: []byte{9}, SampleRate: 16000, Channels: 1}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	clip, err := fb.Synthesize(context.Background(), "hello", "alloy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clip.PCM) != 1 {
		t.Errorf("PCM len = %d, want 1", len(clip.PCM))
	}
	// Vendor voices do not transfer; the fallback gets its default.
	if secondary.Calls[0].Voice != "" {
		t.Errorf("fallback voice = %q, want empty", secondary.Calls[0].Voice)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("primary down")}
	secondary := &ttsmock.Provider{Err: errors.New("secondary down")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Synthesize(context.Background(), "hello", "")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
