package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"stt": {"deepgram"},
	"tts": {"elevenlabs"},
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

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; sessions cannot transcribe speech")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; intent recognition falls back to rules only")
	}

	// Store
	if cfg.Store.Backend != "" && !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres, sqlite", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.SQLitePath == "" {
		errs = append(errs, errors.New("store.sqlite_path is required when store.backend is sqlite"))
	}
	if cfg.Store.Backend == "" || cfg.Store.Backend == StoreMemory {
		slog.Warn("store backend is in-memory; learned patterns will not survive restarts")
	}

	// Voice
	if cfg.Voice.Profile != "" && !cfg.Voice.Profile.IsValid() {
		errs = append(errs, fmt.Errorf("voice.profile %q is invalid; valid values: fast, accurate, debug", cfg.Voice.Profile))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"voice.speech_start_ms", cfg.Voice.SpeechStartMs},
		{"voice.speech_end_ms", cfg.Voice.SpeechEndMs},
		{"voice.silence_timeout_ms", cfg.Voice.SilenceTimeoutMs},
		{"voice.interruption_confirm_ms", cfg.Voice.InterruptionConfirmMs},
		{"voice.false_interruption_window_ms", cfg.Voice.FalseInterruptionWindowMs},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", f.name, f.value))
		}
	}
	if cfg.Voice.NoiseFloorMultiplier < 0 {
		errs = append(errs, fmt.Errorf("voice.noise_floor_multiplier must not be negative, got %.2f", cfg.Voice.NoiseFloorMultiplier))
	}
	if cfg.Voice.MinThreshold < 0 || cfg.Voice.MinThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice.min_threshold %.3f is out of range [0, 1]", cfg.Voice.MinThreshold))
	}
	if cfg.Voice.MaxThreshold < 0 || cfg.Voice.MaxThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice.max_threshold %.3f is out of range [0, 1]", cfg.Voice.MaxThreshold))
	}
	if cfg.Voice.MinThreshold > 0 && cfg.Voice.MaxThreshold > 0 && cfg.Voice.MinThreshold > cfg.Voice.MaxThreshold {
		errs = append(errs, fmt.Errorf("voice.min_threshold %.3f exceeds voice.max_threshold %.3f", cfg.Voice.MinThreshold, cfg.Voice.MaxThreshold))
	}

	// Intent
	if cfg.Intent.MaxLearnedPatterns < 0 {
		errs = append(errs, fmt.Errorf("intent.max_learned_patterns must not be negative, got %d", cfg.Intent.MaxLearnedPatterns))
	}
	if cfg.Intent.MaxSamples < 0 {
		errs = append(errs, fmt.Errorf("intent.max_samples must not be negative, got %d", cfg.Intent.MaxSamples))
	}
	if cfg.Intent.LLMTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("intent.llm_timeout_ms must not be negative, got %d", cfg.Intent.LLMTimeoutMs))
	}

	return errors.Join(errs...)
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
