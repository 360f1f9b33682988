package session

import "time"

// timerKind identifies which orchestrator timer fired.
type timerKind int

const (
	timerConfirm timerKind = iota
	timerFalseInterruption
)

// timerFire is delivered to the controller run loop when a timer expires.
// The epoch lets the loop discard fires from timers that were cancelled or
// superseded after the callback was already scheduled.
type timerFire struct {
	kind  timerKind
	epoch uint64
}

// interruptionPhase tracks where a potential barge-in currently is.
type interruptionPhase int

const (
	// phaseIdle: no interruption attempt in progress.
	phaseIdle interruptionPhase = iota

	// phasePending: speech started during playback, confirm timer armed.
	phasePending

	// phaseWindow: interruption confirmed, false-interruption window open.
	phaseWindow
)

// interruption tracks the barge-in lifecycle for one session. It is owned by
// the controller run loop and is not safe for concurrent use; timers post
// back into the loop through the fires channel instead of mutating state.
type interruption struct {
	confirmDelay time.Duration
	window       time.Duration
	fires        chan<- timerFire

	phase interruptionPhase
	epoch uint64
	timer *time.Timer

	// utterance is the agent response text that was interrupted, kept for
	// resumption if the interruption turns out to be false.
	utterance string
}

func newInterruption(confirmDelay, window time.Duration, fires chan<- timerFire) *interruption {
	return &interruption{
		confirmDelay: confirmDelay,
		window:       window,
		fires:        fires,
	}
}

// onSpeechStart arms the confirmation timer for a potential barge-in. A call
// while an attempt is already in progress is ignored.
func (i *interruption) onSpeechStart() {
	if i.phase != phaseIdle {
		return
	}
	i.phase = phasePending
	i.arm(timerConfirm, i.confirmDelay)
}

// onSpeechEnd cancels a pending confirmation: the speech burst was too short
// to be a real interruption. Reports whether an attempt was cancelled.
func (i *interruption) onSpeechEnd() bool {
	if i.phase != phasePending {
		return false
	}
	i.cancelTimer()
	i.phase = phaseIdle
	return true
}

// confirmFired reports whether a confirm timer fire is still valid. On a
// valid fire the attempt is promoted to a confirmed interruption; the caller
// stops playback and then calls [interruption.openWindow].
func (i *interruption) confirmFired(epoch uint64) bool {
	if i.phase != phasePending || epoch != i.epoch {
		return false
	}
	i.timer = nil
	return true
}

// openWindow records the interrupted utterance text and starts the
// false-interruption window.
func (i *interruption) openWindow(text string) {
	i.phase = phaseWindow
	i.utterance = text
	i.arm(timerFalseInterruption, i.window)
}

// onTranscript closes the false-interruption window because a genuine user
// utterance arrived; the remembered text is discarded. Also clears a pending
// confirmation, which can happen when ASR outruns the VAD.
func (i *interruption) onTranscript() {
	if i.phase == phaseIdle {
		return
	}
	i.cancelTimer()
	i.phase = phaseIdle
	i.utterance = ""
}

// windowFired reports whether a false-interruption window fire is still
// valid, returning the utterance text to resume.
func (i *interruption) windowFired(epoch uint64) (string, bool) {
	if i.phase != phaseWindow || epoch != i.epoch {
		return "", false
	}
	i.timer = nil
	i.phase = phaseIdle
	text := i.utterance
	i.utterance = ""
	return text, true
}

// reset cancels any in-flight attempt and timer.
func (i *interruption) reset() {
	i.cancelTimer()
	i.phase = phaseIdle
	i.utterance = ""
}

func (i *interruption) arm(kind timerKind, d time.Duration) {
	i.cancelTimer()
	i.epoch++
	epoch := i.epoch
	i.timer = time.AfterFunc(d, func() {
		select {
		case i.fires <- timerFire{kind: kind, epoch: epoch}:
		default:
		}
	})
}

func (i *interruption) cancelTimer() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	// Invalidate any fire already in flight.
	i.epoch++
}
