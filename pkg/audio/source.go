package audio

import "context"

// StreamConfig describes the capture format requested from a recording source.
type StreamConfig struct {
	// SampleRate is the requested sample rate in Hz.
	SampleRate int

	// Channels is the requested channel count. Most ASR backends want mono.
	Channels int

	// FrameMs is the requested frame granularity in milliseconds. Sources
	// that cannot honour the exact granularity may deliver larger frames;
	// consumers must not assume a fixed frame size.
	FrameMs int
}

// Source is the abstraction over a microphone / recording backend.
//
// A Source delivers fixed-format PCM frames. The orchestrator does not decode
// compressed audio; any codec handling belongs inside the Source
// implementation.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// StartStream begins capture and returns a channel of PCM frames. The
	// channel is closed when the stream ends, Stop is called, or ctx is
	// cancelled. Only one stream may be active per Source; a second
	// StartStream while a stream is live returns an error.
	StartStream(ctx context.Context, cfg StreamConfig) (<-chan Frame, error)

	// Stop terminates the active stream and releases capture resources.
	// Calling Stop with no active stream is a no-op and returns nil.
	Stop() error
}
