// Package session implements the voice session orchestrator: the session
// state machine, barge-in and false-interruption recovery, and the
// [Controller] that ties the voice activity detector, the speech providers,
// and the intent recognizer into one turn-taking loop.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// State is a session lifecycle state.
type State string

const (
	// StateIdle means no conversation is active. Always a safe landing state.
	StateIdle State = "idle"

	// StateListening means the microphone stream is forwarded to the ASR
	// engine and the session is waiting for user speech.
	StateListening State = "listening"

	// StateThinking means a final transcript is being recognized and a
	// response is being prepared.
	StateThinking State = "thinking"

	// StateSpeaking means agent audio is playing. User speech in this state
	// is a potential barge-in.
	StateSpeaking State = "speaking"
)

// validTransitions maps each state to the states it may move to. Self
// transitions are always accepted as no-ops and are not listed.
var validTransitions = map[State][]State{
	StateIdle:      {StateListening},
	StateListening: {StateThinking, StateSpeaking, StateIdle},
	StateThinking:  {StateSpeaking, StateListening, StateIdle},
	StateSpeaking:  {StateListening, StateIdle},
}

// Change describes one accepted state transition.
type Change struct {
	Old    State
	New    State
	Reason string
	At     time.Time
}

// Machine is the session state machine. It starts in [StateIdle].
//
// All methods are safe for concurrent use, though in practice the
// [Controller] run loop is the only writer.
type Machine struct {
	mu      sync.Mutex
	current State
	logger  *slog.Logger

	// onChange is invoked synchronously, under the lock, for every accepted
	// non-trivial transition.
	onChange func(Change)
}

// NewMachine creates a state machine in [StateIdle]. onChange may be nil;
// when set it receives every accepted transition that changed the state.
func NewMachine(logger *slog.Logger, onChange func(Change)) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		current:  StateIdle,
		logger:   logger,
		onChange: onChange,
	}
}

// Current returns the current session state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves the machine to target and reports whether the move was
// accepted. A transition to the current state is an idempotent no-op that
// succeeds without emitting a change. An invalid transition is rejected,
// logged and leaves the state unchanged; callers must check the return
// value.
func (m *Machine) Transition(target State, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target == m.current {
		return true
	}

	allowed := false
	for _, s := range validTransitions[m.current] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		m.logger.Warn("rejected session transition",
			"from", m.current, "to", target, "reason", reason)
		return false
	}

	m.apply(target, reason)
	return true
}

// ForceState moves the machine to target without validation. Reserved for
// hard resets; regular callers use [Machine.Transition].
func (m *Machine) ForceState(target State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target == m.current {
		return
	}
	m.apply(target, reason)
}

// apply commits the transition. Must be called with m.mu held.
func (m *Machine) apply(target State, reason string) {
	change := Change{Old: m.current, New: target, Reason: reason, At: time.Now()}
	m.current = target

	m.logger.Debug("session transition",
		"from", change.Old, "to", change.New, "reason", reason)

	if m.onChange != nil {
		m.onChange(change)
	}
}
