package config_test

import (
	"testing"

	"github.com/jperram92/JamesConvoBot/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Session: config.SessionConfig{
			Trigger:  "augment",
			Language: "en",
			Voice:    "alloy",
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.TriggerChanged || d.VoiceChanged || d.LanguageChanged {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_TriggerChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Session.Trigger = "jarvis"

	d := config.Diff(old, new)
	if !d.TriggerChanged {
		t.Fatal("TriggerChanged should be true")
	}
	if d.NewTrigger != "jarvis" {
		t.Errorf("NewTrigger = %q, want %q", d.NewTrigger, "jarvis")
	}
}

func TestDiff_VoiceAndLanguageChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Session.Voice = "nova"
	new.Session.Language = "de"

	d := config.Diff(old, new)
	if !d.VoiceChanged || d.NewVoice != "nova" {
		t.Errorf("voice diff wrong: %+v", d)
	}
	if !d.LanguageChanged || d.NewLanguage != "de" {
		t.Errorf("language diff wrong: %+v", d)
	}
	if !d.Any() {
		t.Error("Any() should be true")
	}
}
