package turn

import (
	"sync"
	"time"
)

// StateChange represents a state transition event.
type StateChange struct {
	TurnID    string
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
	// Elapsed is how long the machine stayed in FromState.
	Elapsed time.Duration
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// ListenerFunc adapts a function to StateListener.
type ListenerFunc func(StateChange)

func (f ListenerFunc) OnStateChange(ev StateChange) { f(ev) }

var validTransitions = map[State][]State{
	StateIdle:         {StateTranscribing, StateThinking},
	StateTranscribing: {StateThinking, StateIdle},
	StateThinking:     {StateSynthesizing, StateIdle},
	StateSynthesizing: {StateSpeaking, StateIdle},
	StateSpeaking:     {StateIdle},
}

// Machine tracks the stage of one turn. Listeners run synchronously on the
// goroutine that calls Transition, without the machine lock held.
type Machine struct {
	turnID string

	mu        sync.RWMutex
	current   State
	enteredAt time.Time
	listeners []StateListener
	now       func() time.Time
}

func NewMachine(turnID string, listeners ...StateListener) *Machine {
	m := &Machine{turnID: turnID, current: StateIdle, now: time.Now}
	m.enteredAt = m.now()
	for _, l := range listeners {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	if !transitionValid(m.current, to) {
		from := m.current
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	now := m.now()
	event := StateChange{
		TurnID:    m.turnID,
		FromState: m.current,
		ToState:   to,
		Timestamp: now,
		Reason:    reason,
		Elapsed:   now.Sub(m.enteredAt),
	}
	m.current = to
	m.enteredAt = now
	listeners := make([]StateListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// Finish returns the machine to Idle from any state. It is a no-op when idle.
func (m *Machine) Finish(reason string) {
	if m.State() != StateIdle {
		_ = m.Transition(StateIdle, reason)
	}
}

// AddListener registers a listener for state change events.
func (m *Machine) AddListener(listener StateListener) {
	if listener == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
