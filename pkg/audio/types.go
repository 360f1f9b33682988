// Package audio provides the PCM frame type and frame-level signal helpers
// shared by the recording source, the voice activity detector, and the
// provider adapters.
package audio

import "time"

// Frame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport: captured from the microphone
// stream, scored by the VAD, and forwarded to the ASR session.
type Frame struct {
	// PCM audio data, 16-bit little-endian signed samples.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for ASR input).
	SampleRate int

	// Channels: 1 for mono microphone capture, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time of the frame computed from its sample count.
// Returns 0 for frames with an unset sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}
