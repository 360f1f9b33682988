package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: deepgram
    api_key: dg-test
  tts:
    name: elevenlabs
    api_key: el-test
store:
  backend: sqlite
  sqlite_path: ":memory:"
voice:
  profile: fast
intent:
  language: en-US
  max_learned_patterns: 100
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Name != "openai" {
		t.Errorf("llm name = %q, want openai", cfg.Providers.LLM.Name)
	}
	if cfg.Store.Backend != config.StoreSQLite {
		t.Errorf("store backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Voice.Profile != config.ProfileFast {
		t.Errorf("voice profile = %q, want fast", cfg.Voice.Profile)
	}
	if cfg.Intent.MaxLearnedPatterns != 100 {
		t.Errorf("max_learned_patterns = %d, want 100", cfg.Intent.MaxLearnedPatterns)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("config is nil")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listne_addr: ':8080'\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LogLevel = "verbose"
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = config.StorePostgres
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = config.StoreSQLite
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sqlite_path") {
		t.Errorf("error should mention sqlite_path, got: %v", err)
	}
}

func TestValidate_InvalidProfile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Voice.Profile = "turbo"
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid profile")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := &config.Config{}
	cfg.Voice.MinThreshold = 0.8
	cfg.Voice.MaxThreshold = 0.2
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for min > max")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Voice.Profile = "turbo"
	cfg.Intent.MaxSamples = -1
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "profile", "max_samples"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestTimings_ProfileDefaults(t *testing.T) {
	tests := []struct {
		profile     config.Profile
		wantConfirm time.Duration
		wantWindow  time.Duration
	}{
		{config.ProfileFast, 300 * time.Millisecond, 2 * time.Second},
		{config.ProfileAccurate, 500 * time.Millisecond, 3 * time.Second},
		{config.ProfileDebug, 1000 * time.Millisecond, 10 * time.Second},
	}
	for _, tc := range tests {
		t.Run(string(tc.profile), func(t *testing.T) {
			v := config.VoiceConfig{Profile: tc.profile}
			got := v.Timings()
			if got.InterruptionConfirm != tc.wantConfirm {
				t.Errorf("InterruptionConfirm = %v, want %v", got.InterruptionConfirm, tc.wantConfirm)
			}
			if got.FalseInterruptionWindow != tc.wantWindow {
				t.Errorf("FalseInterruptionWindow = %v, want %v", got.FalseInterruptionWindow, tc.wantWindow)
			}
			if got.SpeechStart != 200*time.Millisecond {
				t.Errorf("SpeechStart = %v, want 200ms", got.SpeechStart)
			}
			if got.SpeechEnd != 800*time.Millisecond {
				t.Errorf("SpeechEnd = %v, want 800ms", got.SpeechEnd)
			}
		})
	}
}

func TestTimings_EmptyProfileIsAccurate(t *testing.T) {
	got := config.VoiceConfig{}.Timings()
	if got.InterruptionConfirm != 500*time.Millisecond {
		t.Errorf("InterruptionConfirm = %v, want 500ms", got.InterruptionConfirm)
	}
	if got.SilenceTimeout != 5*time.Second {
		t.Errorf("SilenceTimeout = %v, want 5s", got.SilenceTimeout)
	}
}

func TestTimings_ExplicitOverrides(t *testing.T) {
	v := config.VoiceConfig{
		Profile:               config.ProfileFast,
		InterruptionConfirmMs: 750,
		SilenceTimeoutMs:      12000,
	}
	got := v.Timings()
	if got.InterruptionConfirm != 750*time.Millisecond {
		t.Errorf("InterruptionConfirm = %v, want 750ms", got.InterruptionConfirm)
	}
	if got.SilenceTimeout != 12*time.Second {
		t.Errorf("SilenceTimeout = %v, want 12s", got.SilenceTimeout)
	}
	// Non-overridden fields keep the profile defaults.
	if got.FalseInterruptionWindow != 2*time.Second {
		t.Errorf("FalseInterruptionWindow = %v, want 2s", got.FalseInterruptionWindow)
	}
}

func TestLLMTimeout_Default(t *testing.T) {
	if got := (config.IntentConfig{}).LLMTimeout(); got != 10*time.Second {
		t.Errorf("LLMTimeout = %v, want 10s", got)
	}
	if got := (config.IntentConfig{LLMTimeoutMs: 2500}).LLMTimeout(); got != 2500*time.Millisecond {
		t.Errorf("LLMTimeout = %v, want 2.5s", got)
	}
}

func TestDiff_NoChanges(t *testing.T) {
	a := &config.Config{}
	b := &config.Config{}
	d := config.Diff(a, b)
	if d.LogLevelChanged || d.VoiceChanged || d.IntentChanged {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	a := &config.Config{}
	a.Server.LogLevel = config.LogInfo
	b := &config.Config{}
	b.Server.LogLevel = config.LogDebug

	d := config.Diff(a, b)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_VoiceChanged(t *testing.T) {
	a := &config.Config{}
	b := &config.Config{}
	b.Voice.Profile = config.ProfileFast

	d := config.Diff(a, b)
	if !d.VoiceChanged {
		t.Fatal("expected VoiceChanged")
	}
	if d.NewTimings.InterruptionConfirm != 300*time.Millisecond {
		t.Errorf("NewTimings.InterruptionConfirm = %v, want 300ms", d.NewTimings.InterruptionConfirm)
	}
}
