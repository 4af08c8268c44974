package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// bridge changes require a restart and are intentionally absent.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	TriggerChanged bool
	NewTrigger     string

	VoiceChanged bool
	NewVoice     string

	LanguageChanged bool
	NewLanguage     string
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.TriggerChanged || d.VoiceChanged || d.LanguageChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Session.Trigger != new.Session.Trigger {
		d.TriggerChanged = true
		d.NewTrigger = new.Session.Trigger
	}

	if old.Session.Voice != new.Session.Voice {
		d.VoiceChanged = true
		d.NewVoice = new.Session.Voice
	}

	if old.Session.Language != new.Session.Language {
		d.LanguageChanged = true
		d.NewLanguage = new.Session.Language
	}

	return d
}
