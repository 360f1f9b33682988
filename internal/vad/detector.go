// Package vad implements energy-based voice activity detection with an
// adaptive noise floor.
//
// The detector is frame-clocked: it consumes PCM frames in stream order and
// derives all timing from frame timestamps and durations, so a given frame
// sequence always produces the same events regardless of wall-clock
// scheduling. [Detector.ProcessFrame] is the single entry point; it is not
// safe for concurrent use and is expected to be called from one goroutine.
package vad

import (
	"sort"
	"time"

	"github.com/ledgervoice/ledgervoice/pkg/audio"
)

// EventType identifies a voice activity event.
type EventType string

const (
	// SpeechStart fires once per sustained speech run, after speech has been
	// held for at least [Config.SpeechStartThreshold].
	SpeechStart EventType = "speech_start"

	// SpeechEnd fires once per speech run, after silence has been held for at
	// least [Config.SpeechEndThreshold]. The event carries the run duration.
	SpeechEnd EventType = "speech_end"

	// SilenceTimeout fires once after [Config.SilenceTimeout] of stream time
	// passes without a speech event. It re-arms on the next speech event.
	SilenceTimeout EventType = "silence_timeout"
)

// Event is a single voice activity detection result.
type Event struct {
	Type EventType

	// Energy of the frame that triggered the event, normalised to [0, 1].
	Energy float64

	// Duration of the completed speech run. Set only for [SpeechEnd].
	Duration time.Duration

	// At is the stream position at which the event fired.
	At time.Duration
}

// state is the detector's internal four-state machine.
type state int

const (
	stateSilence state = iota
	statePossibleSpeech
	stateSpeaking
	statePossibleSilence
)

const (
	defaultSpeechStartThreshold = 200 * time.Millisecond
	defaultSpeechEndThreshold   = 800 * time.Millisecond
	defaultSilenceTimeout       = 5 * time.Second
	defaultNoiseFloorMultiplier = 3.0
	defaultMinThreshold         = 0.005
	defaultMaxThreshold         = 0.25

	// noiseWindowSize bounds the noise floor sample window.
	noiseWindowSize = 100
)

// Config tunes the detector. The zero value is usable; unset fields take
// the documented defaults.
type Config struct {
	// SpeechStartThreshold is the minimum sustained speech duration before a
	// [SpeechStart] event fires. Default 200ms.
	SpeechStartThreshold time.Duration

	// SpeechEndThreshold is the minimum sustained silence duration before a
	// [SpeechEnd] event fires. Default 800ms.
	SpeechEndThreshold time.Duration

	// SilenceTimeout is the stream time without speech events after which a
	// [SilenceTimeout] event fires. Default 5s.
	SilenceTimeout time.Duration

	// NoiseFloorMultiplier scales the noise floor median into the detection
	// threshold. Default 3.
	NoiseFloorMultiplier float64

	// MinThreshold and MaxThreshold clamp the adaptive detection threshold.
	// Defaults 0.005 and 0.25.
	MinThreshold float64
	MaxThreshold float64

	// DisableAdaptive freezes the threshold at MinThreshold instead of
	// tracking the ambient noise floor.
	DisableAdaptive bool
}

func (c Config) withDefaults() Config {
	if c.SpeechStartThreshold <= 0 {
		c.SpeechStartThreshold = defaultSpeechStartThreshold
	}
	if c.SpeechEndThreshold <= 0 {
		c.SpeechEndThreshold = defaultSpeechEndThreshold
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = defaultSilenceTimeout
	}
	if c.NoiseFloorMultiplier <= 0 {
		c.NoiseFloorMultiplier = defaultNoiseFloorMultiplier
	}
	if c.MinThreshold <= 0 {
		c.MinThreshold = defaultMinThreshold
	}
	if c.MaxThreshold <= 0 {
		c.MaxThreshold = defaultMaxThreshold
	}
	if c.MinThreshold > c.MaxThreshold {
		c.MinThreshold = c.MaxThreshold
	}
	return c
}

// Detector classifies audio frames as speech or silence and emits turn-taking
// events. Create one with [New] and feed it frames via [ProcessFrame].
type Detector struct {
	cfg Config

	state     state
	threshold float64

	// speechRun and silenceRun accumulate consecutive frame durations in the
	// transitional states.
	speechRun  time.Duration
	silenceRun time.Duration

	// speechStartedAt is the stream position of the last SpeechStart event,
	// so SpeechEnd can report the run duration.
	speechStartedAt time.Duration

	noiseWindow []float64

	lastSpeechEvent time.Duration
	timeoutFired    bool
}

// New creates a detector with the given configuration.
func New(cfg Config) *Detector {
	cfg = cfg.withDefaults()
	return &Detector{
		cfg:         cfg,
		threshold:   cfg.MinThreshold,
		noiseWindow: make([]float64, 0, noiseWindowSize),
	}
}

// Threshold returns the current adaptive detection threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Reset returns the detector to its initial state, discarding the noise
// floor window and any in-progress speech run.
func (d *Detector) Reset() {
	d.state = stateSilence
	d.threshold = d.cfg.MinThreshold
	d.speechRun = 0
	d.silenceRun = 0
	d.speechStartedAt = 0
	d.noiseWindow = d.noiseWindow[:0]
	d.lastSpeechEvent = 0
	d.timeoutFired = false
}

// ProcessFrame advances the state machine with one frame and returns any
// events it produced, in order. Frames must be delivered in stream order.
func (d *Detector) ProcessFrame(f audio.Frame) []Event {
	energy := audio.Energy(f)
	dur := f.Duration()
	end := f.Timestamp + dur
	loud := energy > d.threshold

	var events []Event

	switch d.state {
	case stateSilence:
		if loud {
			d.state = statePossibleSpeech
			d.speechRun = dur
		} else {
			d.updateNoiseFloor(energy)
		}

	case statePossibleSpeech:
		if loud {
			d.speechRun += dur
			if d.speechRun >= d.cfg.SpeechStartThreshold {
				d.state = stateSpeaking
				d.speechStartedAt = end
				events = append(events, Event{Type: SpeechStart, Energy: energy, At: end})
			}
		} else {
			// Not sustained, treat as a transient.
			d.state = stateSilence
			d.speechRun = 0
		}

	case stateSpeaking:
		if !loud {
			d.state = statePossibleSilence
			d.silenceRun = dur
		}

	case statePossibleSilence:
		if loud {
			d.state = stateSpeaking
			d.silenceRun = 0
		} else {
			d.silenceRun += dur
			if d.silenceRun >= d.cfg.SpeechEndThreshold {
				d.state = stateSilence
				events = append(events, Event{
					Type:     SpeechEnd,
					Energy:   energy,
					Duration: end - d.speechStartedAt,
					At:       end,
				})
				d.speechRun = 0
				d.silenceRun = 0
			}
		}
	}

	for _, ev := range events {
		d.lastSpeechEvent = ev.At
		d.timeoutFired = false
	}

	if !d.timeoutFired && end-d.lastSpeechEvent >= d.cfg.SilenceTimeout {
		d.timeoutFired = true
		events = append(events, Event{Type: SilenceTimeout, Energy: energy, At: end})
	}

	return events
}

// updateNoiseFloor records a silence-frame energy and re-derives the
// detection threshold from it. The window median scaled by the multiplier is
// blended into the live threshold at a 90/10 ratio, which tracks slow
// environmental changes without oscillating on transient bursts.
func (d *Detector) updateNoiseFloor(energy float64) {
	if d.cfg.DisableAdaptive {
		return
	}

	if len(d.noiseWindow) >= noiseWindowSize {
		copy(d.noiseWindow, d.noiseWindow[1:])
		d.noiseWindow = d.noiseWindow[:noiseWindowSize-1]
	}
	d.noiseWindow = append(d.noiseWindow, energy)

	target := median(d.noiseWindow) * d.cfg.NoiseFloorMultiplier
	if target < d.cfg.MinThreshold {
		target = d.cfg.MinThreshold
	}
	if target > d.cfg.MaxThreshold {
		target = d.cfg.MaxThreshold
	}
	d.threshold = d.threshold*0.9 + target*0.1
}

func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
