package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgervoice/ledgervoice/pkg/provider/tts"
	ttsmock "github.com/ledgervoice/ledgervoice/pkg/provider/tts/mock"
)

func TestTTSFallback_Speak_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	ut, err := fb.Speak(context.Background(), "done, added lunch", tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ut == nil {
		t.Fatal("expected an utterance")
	}
	if primary.SpeakCallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.SpeakCallCount())
	}
	if secondary.SpeakCallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.SpeakCallCount())
	}
}

func TestTTSFallback_Speak_Failover(t *testing.T) {
	primary := &ttsmock.Provider{SpeakErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Speak(context.Background(), "done", tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondary.SpeakCallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.SpeakCallCount())
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	primary := &ttsmock.Provider{ListVoicesErr: errors.New("catalogue unavailable")}
	secondary := &ttsmock.Provider{
		Voices: []tts.VoiceProfile{{ID: "v2", Name: "Backup"}},
	}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v2" {
		t.Fatalf("unexpected voices: %+v", voices)
	}
}
