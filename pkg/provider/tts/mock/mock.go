// Package mock provides test doubles for the tts package interfaces.
//
// Use Provider to verify which texts the caller synthesised and with which
// voice. Use Utterance to keep an audio stream open until the test decides to
// finish or interrupt it, which is how barge-in handling is exercised.
package mock

import (
	"context"
	"sync"

	"github.com/ledgervoice/ledgervoice/pkg/provider/tts"
)

// SpeakCall records a single invocation of Provider.Speak.
type SpeakCall struct {
	// Text is the response text passed to Speak.
	Text string
	// Voice is the voice profile passed to Speak.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Utterances are returned by successive Speak calls in order. When the
	// list is exhausted (or empty), Speak returns a new finished Utterance
	// with no audio.
	Utterances []*Utterance

	// SpeakErr, if non-nil, is returned as the error from every Speak call.
	SpeakErr error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall

	next int
}

// Speak records the call and returns the next configured Utterance.
func (p *Provider) Speak(_ context.Context, text string, voice tts.VoiceProfile) (tts.Utterance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Text: text, Voice: voice})
	if p.SpeakErr != nil {
		return nil, p.SpeakErr
	}
	if p.next < len(p.Utterances) {
		u := p.Utterances[p.next]
		p.next++
		return u, nil
	}
	u := NewUtterance()
	u.Finish()
	return u, nil
}

// ListVoices returns Voices, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.Voices, nil
}

// SpeakCallCount returns the number of Speak calls. Thread-safe.
func (p *Provider) SpeakCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SpeakCalls)
}

// LastSpokenText returns the text of the most recent Speak call, or "" if
// Speak was never called. Thread-safe.
func (p *Provider) LastSpokenText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.SpeakCalls) == 0 {
		return ""
	}
	return p.SpeakCalls[len(p.SpeakCalls)-1].Text
}

// Reset clears all recorded calls and rewinds the Utterances cursor. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeakCalls = nil
	p.next = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// Utterance is a mock implementation of tts.Utterance. Tests push audio with
// Push, end the stream with Finish or Fail, and observe interruptions through
// StopCallCount and the Stopped channel.
type Utterance struct {
	mu sync.Mutex

	audio   chan []byte
	err     error
	stops   int
	endOnce sync.Once

	// Stopped is closed the first time Stop is called.
	Stopped chan struct{}
}

// NewUtterance creates an Utterance with a buffered audio channel that stays
// open until Finish, Fail, or Stop is called.
func NewUtterance() *Utterance {
	return &Utterance{
		audio:   make(chan []byte, 64),
		Stopped: make(chan struct{}),
	}
}

// Push queues an audio chunk. Returns false if the channel buffer is full.
func (u *Utterance) Push(chunk []byte) bool {
	select {
	case u.audio <- chunk:
		return true
	default:
		return false
	}
}

// Finish closes the audio channel, simulating normal completion.
func (u *Utterance) Finish() {
	u.endOnce.Do(func() { close(u.audio) })
}

// Fail records err and closes the audio channel, simulating a synthesis error.
func (u *Utterance) Fail(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
	u.endOnce.Do(func() { close(u.audio) })
}

// Audio returns the audio channel.
func (u *Utterance) Audio() <-chan []byte { return u.audio }

// Stop records the call, closes Stopped, and closes the audio channel.
func (u *Utterance) Stop() {
	u.mu.Lock()
	u.stops++
	first := u.stops == 1
	u.mu.Unlock()
	if first {
		close(u.Stopped)
	}
	u.endOnce.Do(func() { close(u.audio) })
}

// StopCallCount returns the number of Stop calls. Thread-safe.
func (u *Utterance) StopCallCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stops
}

// Err returns the error set by Fail, if any.
func (u *Utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Ensure Utterance implements tts.Utterance at compile time.
var _ tts.Utterance = (*Utterance)(nil)
