// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram or
// a self-hosted Whisper server) and exposes a uniform streaming interface.
// The central abstraction is SessionHandle: once opened, a session accepts
// raw PCM audio and emits two streams of Transcript values — low-latency
// partials for responsiveness and authoritative finals that drive intent
// recognition.
//
// Implementations must be safe for concurrent use. Audio input and transcript
// output channels are goroutine-safe by construction.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// STT session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual
	// ASR-optimised mono rate.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// providers). Implementors may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string
}

// SessionHandle represents an open STT streaming session. It is an interface
// so that test code can provide mock implementations without a live provider
// connection.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk should match the SampleRate, Channels, and
	// bit-depth agreed in StreamConfig. Calling SendAudio after Close
	// returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// Transcript values. These drive UI feedback but must not be fed to
	// intent recognition. The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel that emits authoritative
	// Transcript values once the provider has committed to a result.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session, flushes pending audio, and releases all
	// associated resources. After Close returns, the Partials and Finals
	// channels will be closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call StartStream simultaneously to open independent sessions.
type Provider interface {
	// StartStream opens a streaming transcription session. The session is
	// immediately ready to accept audio. Returns an error if the backend is
	// unreachable or the configuration is unsupported.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
