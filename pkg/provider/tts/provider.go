// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Piper instance) and presents a uniform streaming interface. The primary
// entry point is Speak, which synthesises a complete response text and returns
// an Utterance: a handle over the in-flight audio stream that the session
// controller can stop mid-playback when the user barges in.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile identifies a synthesis voice at a specific provider.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier.
	ID string
	// Name is the human-readable voice name.
	Name string
	// Provider names the backend the voice belongs to (e.g., "elevenlabs").
	Provider string
	// Metadata carries provider-specific voice attributes (accent, gender,
	// category). May be nil.
	Metadata map[string]string
}

// Utterance is a handle over one in-flight synthesis. The caller drains Audio
// for raw PCM chunks and may call Stop at any time to abort synthesis and
// playback immediately, which is how user interruptions are honoured.
type Utterance interface {
	// Audio returns the channel emitting raw PCM audio chunks as they are
	// synthesised. The channel is closed when synthesis completes, fails, or
	// is stopped. The caller must drain it to avoid blocking the provider's
	// internal goroutines.
	Audio() <-chan []byte

	// Stop aborts the utterance. Pending audio is discarded and the Audio
	// channel is closed promptly. Stop is idempotent and safe to call
	// concurrently with Audio reads.
	Stop()

	// Err reports the terminal state of the utterance once the Audio channel
	// has closed: nil on normal completion or after Stop, otherwise the
	// synthesis error.
	Err() error
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple utterances may be
// synthesised in parallel.
type Provider interface {
	// Speak starts synthesising text with the given voice and returns an
	// Utterance streaming the resulting audio. Returns a non-nil error only
	// if synthesis cannot be started; errors during synthesis are reported
	// through the Utterance's Err method after its Audio channel closes.
	Speak(ctx context.Context, text string, voice VoiceProfile) (Utterance, error)

	// ListVoices returns all voice profiles available from this provider.
	// The list reflects the provider's current catalogue and may change
	// between calls if the underlying service adds or removes voices.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
