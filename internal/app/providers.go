package app

import (
	"fmt"
	"log/slog"

	"github.com/jperram92/JamesConvoBot/internal/config"
	"github.com/jperram92/JamesConvoBot/internal/resilience"
)

// BuildProviders instantiates every provider named in cfg using the registry.
// An entry with a fallback list is wrapped in the matching resilience failover
// group, so a failing primary is bypassed in favour of the next healthy
// backend; each backend then carries its own circuit breaker.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if entry := cfg.Providers.STT; entry.Name != "" {
		primary, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		ps.STT = primary
		if len(entry.Fallbacks) > 0 {
			group := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{})
			for _, fb := range entry.Fallbacks {
				p, err := reg.CreateSTT(fb)
				if err != nil {
					return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
				}
				group.AddFallback(fb.Name, p)
			}
			ps.STT = group
		}
		logProvider("stt", entry)
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		primary, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
		}
		ps.TTS = primary
		if len(entry.Fallbacks) > 0 {
			group := resilience.NewTTSFallback(primary, entry.Name, resilience.FallbackConfig{})
			for _, fb := range entry.Fallbacks {
				p, err := reg.CreateTTS(fb)
				if err != nil {
					return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
				}
				group.AddFallback(fb.Name, p)
			}
			ps.TTS = group
		}
		logProvider("tts", entry)
	}

	if entry := cfg.Providers.Agent; entry.Name != "" {
		primary, err := reg.CreateAgent(entry)
		if err != nil {
			return nil, fmt.Errorf("create agent provider %q: %w", entry.Name, err)
		}
		ps.Agent = primary
		if len(entry.Fallbacks) > 0 {
			group := resilience.NewAgentFallback(primary, entry.Name, resilience.FallbackConfig{})
			for _, fb := range entry.Fallbacks {
				p, err := reg.CreateAgent(fb)
				if err != nil {
					return nil, fmt.Errorf("create agent fallback %q: %w", fb.Name, err)
				}
				group.AddFallback(fb.Name, p)
			}
			ps.Agent = group
		}
		logProvider("agent", entry)
	}

	return ps, nil
}

func logProvider(kind string, entry config.ProviderEntry) {
	slog.Info("provider created",
		"kind", kind,
		"name", entry.Name,
		"fallbacks", len(entry.Fallbacks),
	)
}
