package config_test

import (
	"strings"
	"testing"

	"github.com/jperram92/JamesConvoBot/internal/config"
)

func TestValidate_MissingSTTProvider(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing STT provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt") {
		t.Errorf("error should mention providers.stt, got: %v", err)
	}
}

func TestValidate_MissingTTSProvider(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing TTS provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.tts") {
		t.Errorf("error should mention providers.tts, got: %v", err)
	}
}

func TestValidate_AgentIsOptional(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
  tts:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	t.Parallel()
	yaml := `
bridge:
  url: wss://bridge.example.com
  max_retries: -1
providers:
  stt:
    name: whisper
  tts:
    name: openai
session:
  queue_depth: -4
  max_worker_restarts: -1
  stt_max_retries: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for negative values, got nil")
	}
	errStr := err.Error()
	for _, field := range []string{"bridge.max_retries", "session.queue_depth", "session.max_worker_restarts", "session.stt_max_retries"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("error should mention %s, got: %v", field, err)
		}
	}
}

func TestValidate_SegmentDurationOrdering(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  min_segment: 10s
  max_segment: 1s
providers:
  stt:
    name: whisper
  tts:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for min_segment > max_segment, got nil")
	}
	if !strings.Contains(err.Error(), "min_segment") {
		t.Errorf("error should mention min_segment, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
session:
  trigger: Hey Bot
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "trigger") {
		t.Errorf("error should mention trigger, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	sttNames := config.ValidProviderNames["stt"]
	if len(sttNames) == 0 {
		t.Fatal("ValidProviderNames[\"stt\"] should not be empty")
	}
	// Check that "whisper" is in the STT list.
	found := false
	for _, n := range sttNames {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"stt\"] should contain \"whisper\"")
	}
}

func TestValidate_FallbackEntries(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    fallbacks:
      - name: whisper
        model: /models/ggml-base.en.bin
  tts:
    name: openai
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers.STT.Fallbacks) != 1 || cfg.Providers.STT.Fallbacks[0].Name != "whisper" {
		t.Errorf("fallbacks = %+v", cfg.Providers.STT.Fallbacks)
	}
}

func TestValidate_FallbackWithoutName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    fallbacks:
      - model: /models/ggml-base.en.bin
  tts:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for nameless fallback, got nil")
	}
	if !strings.Contains(err.Error(), "fallbacks[0].name") {
		t.Errorf("error should mention the fallback name, got: %v", err)
	}
}

func TestValidate_NestedFallbacksRejected(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    fallbacks:
      - name: whisper
        fallbacks:
          - name: openai
  tts:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for nested fallbacks, got nil")
	}
	if !strings.Contains(err.Error(), "nested") {
		t.Errorf("error should mention nesting, got: %v", err)
	}
}
