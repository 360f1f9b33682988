package resilience

import (
	"context"

	"github.com/ledgervoice/ledgervoice/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// synthesis backends. Each backend has its own circuit breaker.
//
// Only starting an utterance participates in failover. Once an utterance is
// established, mid-stream errors are the caller's responsibility.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Speak starts synthesis with the first healthy provider.
func (f *TTSFallback) Speak(ctx context.Context, text string, voice tts.VoiceProfile) (tts.Utterance, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Utterance, error) {
		return p.Speak(ctx, text, voice)
	})
}

// ListVoices returns the voice catalogue of the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// Degraded reports which backends currently have an open circuit breaker.
func (f *TTSFallback) Degraded() []string {
	return f.group.Degraded()
}
