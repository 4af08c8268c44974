package app

import (
	"testing"

	"github.com/jperram92/JamesConvoBot/internal/config"
)

func TestSTTBreakerOnlyWithoutFallbacks(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Providers.STT = config.ProviderEntry{Name: "openai"}
	if sttBreaker(cfg) == nil {
		t.Error("no breaker guarding a bare STT provider")
	}

	// A fallback chain already carries a breaker per backend; layering an
	// outer one on top would double-count failures.
	cfg.Providers.STT.Fallbacks = []config.ProviderEntry{{Name: "whisper"}}
	if sttBreaker(cfg) != nil {
		t.Error("outer breaker layered over a fallback chain")
	}
}
