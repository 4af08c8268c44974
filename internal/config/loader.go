package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"openai", "whisper"},
	"tts":   {"openai", "elevenlabs", "coqui"},
	"agent": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Bridge
	if cfg.Bridge.URL != "" && !strings.HasPrefix(cfg.Bridge.URL, "ws://") && !strings.HasPrefix(cfg.Bridge.URL, "wss://") {
		errs = append(errs, fmt.Errorf("bridge.url %q must use the ws:// or wss:// scheme", cfg.Bridge.URL))
	}
	if cfg.Bridge.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("bridge.max_retries %d must not be negative", cfg.Bridge.MaxRetries))
	}
	if cfg.Bridge.Backoff != 0 && cfg.Bridge.MaxBackoff != 0 && cfg.Bridge.Backoff > cfg.Bridge.MaxBackoff {
		errs = append(errs, errors.New("bridge.backoff must not exceed bridge.max_backoff"))
	}

	// Audio
	if cfg.Audio.RMSThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.rms_threshold %.1f must not be negative", cfg.Audio.RMSThreshold))
	}
	if cfg.Audio.ActivationFrames < 0 {
		errs = append(errs, fmt.Errorf("audio.activation_frames %d must not be negative", cfg.Audio.ActivationFrames))
	}
	if cfg.Audio.MinSegment != 0 && cfg.Audio.MaxSegment != 0 && cfg.Audio.MinSegment > cfg.Audio.MaxSegment {
		errs = append(errs, errors.New("audio.min_segment must not exceed audio.max_segment"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("agent", cfg.Providers.Agent.Name)

	errs = append(errs, validateFallbacks("stt", cfg.Providers.STT)...)
	errs = append(errs, validateFallbacks("tts", cfg.Providers.TTS)...)
	errs = append(errs, validateFallbacks("agent", cfg.Providers.Agent)...)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required; the session cannot transcribe without it"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required; the session cannot speak without it"))
	}
	if cfg.Providers.Agent.Name == "" {
		slog.Warn("providers.agent is not configured; queries and summaries will be declined")
	}

	// Session
	if trigger := cfg.Session.Trigger; trigger != "" {
		if strings.ContainsAny(trigger, " \t") {
			errs = append(errs, fmt.Errorf("session.trigger %q must be a single word", trigger))
		}
		if trigger != strings.ToLower(trigger) {
			errs = append(errs, fmt.Errorf("session.trigger %q must be lowercase", trigger))
		}
	}
	if cfg.Session.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("session.queue_depth %d must not be negative", cfg.Session.QueueDepth))
	}
	if cfg.Session.MaxWorkerRestarts < 0 {
		errs = append(errs, fmt.Errorf("session.max_worker_restarts %d must not be negative", cfg.Session.MaxWorkerRestarts))
	}
	if cfg.Session.STTMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("session.stt_max_retries %d must not be negative", cfg.Session.STTMaxRetries))
	}

	// Persistence
	if cfg.Persistence.PostgresDSN == "" {
		slog.Warn("persistence.postgres_dsn is empty; transcripts and recordings will not be persisted")
	}

	return errors.Join(errs...)
}

// validateFallbacks checks the fallback list of one provider entry: every
// fallback needs a name, may not nest further fallbacks, and a fallback list
// without a primary is meaningless.
func validateFallbacks(kind string, entry ProviderEntry) []error {
	var errs []error
	if len(entry.Fallbacks) > 0 && entry.Name == "" {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks requires a primary provider name", kind))
	}
	for i, fb := range entry.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d] (%s) must not declare nested fallbacks", kind, i, fb.Name))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
