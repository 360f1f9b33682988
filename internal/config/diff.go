package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoiceChanged is true if any voice tuning field changed. New sessions
	// pick up the new timings; running sessions keep the old ones.
	VoiceChanged bool
	NewTimings   Timings

	// IntentChanged is true if the cascade or learning bounds changed.
	IntentChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: provider and
// store changes require a restart and are deliberately not reported.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Voice != new.Voice {
		d.VoiceChanged = true
		d.NewTimings = new.Voice.Timings()
	}

	if old.Intent != new.Intent {
		d.IntentChanged = true
	}

	return d
}
