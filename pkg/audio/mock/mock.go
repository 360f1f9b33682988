// Package mock provides test doubles for the audio package interfaces.
//
// Source implements audio.Source with a caller-controlled frame channel:
// tests push frames via [Source.Push] and end the stream via [Source.Stop]
// or by cancelling the StartStream context.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/ledgervoice/ledgervoice/pkg/audio"
)

// StartStreamCall records a single invocation of Source.StartStream.
type StartStreamCall struct {
	// Cfg is the StreamConfig passed to StartStream.
	Cfg audio.StreamConfig
}

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// Buffer is the capacity of the frame channel created by StartStream.
	// Zero means 256.
	Buffer int

	// StartStreamCalls records every call to StartStream in order.
	StartStreamCalls []StartStreamCall

	// StopCallCount is the number of times Stop was called.
	StopCallCount int

	frames chan audio.Frame
	active bool
}

// StartStream records the call and returns a fresh frame channel.
func (s *Source) StartStream(_ context.Context, cfg audio.StreamConfig) (<-chan audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartStreamCalls = append(s.StartStreamCalls, StartStreamCall{Cfg: cfg})
	if s.StartStreamErr != nil {
		return nil, s.StartStreamErr
	}
	if s.active {
		return nil, errors.New("mock source: stream already active")
	}
	buf := s.Buffer
	if buf == 0 {
		buf = 256
	}
	s.frames = make(chan audio.Frame, buf)
	s.active = true
	return s.frames, nil
}

// Push delivers a frame to the active stream. Returns false if no stream is
// active or the buffer is full.
func (s *Source) Push(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	select {
	case s.frames <- f:
		return true
	default:
		return false
	}
}

// Stop closes the active frame channel.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCallCount++
	if s.active {
		close(s.frames)
		s.active = false
	}
	return nil
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
