package turn

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(ev StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureListener) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.ToState)
	}
	return out
}

func TestMachineVoiceTurn(t *testing.T) {
	l := &captureListener{}
	m := NewMachine("turn-1", l)

	for _, s := range []State{StateTranscribing, StateThinking, StateSynthesizing, StateSpeaking, StateIdle} {
		if err := m.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	got := l.States()
	if len(got) != 5 || got[4] != StateIdle {
		t.Fatalf("unexpected transitions %v", got)
	}
	if l.events[0].TurnID != "turn-1" {
		t.Fatalf("expected turn id on event, got %q", l.events[0].TurnID)
	}
}

func TestMachineTextTurnStartsAtThinking(t *testing.T) {
	m := NewMachine("t")
	if err := m.Transition(StateThinking, "text input"); err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if m.State() != StateThinking {
		t.Fatalf("expected THINKING, got %s", m.State())
	}
}

func TestMachineFailurePaths(t *testing.T) {
	m := NewMachine("t")
	_ = m.Transition(StateTranscribing, "audio")
	if err := m.Transition(StateIdle, "no speech"); err != nil {
		t.Fatalf("no speech should return to idle: %v", err)
	}

	_ = m.Transition(StateThinking, "text")
	_ = m.Transition(StateSynthesizing, "tts")
	if err := m.Transition(StateIdle, "tts failed"); err != nil {
		t.Fatalf("tts failure should return to idle: %v", err)
	}
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m := NewMachine("t")
	err := m.Transition(StateSpeaking, "skip")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StateIdle || invalid.To != StateSpeaking {
		t.Fatalf("unexpected error fields %+v", invalid)
	}
	if m.State() != StateIdle {
		t.Fatalf("state must not change on invalid transition")
	}
}

func TestMachineElapsedAndFinish(t *testing.T) {
	l := &captureListener{}
	m := NewMachine("t", l)
	now := time.Unix(100, 0)
	m.now = func() time.Time { return now }
	m.enteredAt = now

	_ = m.Transition(StateThinking, "text")
	now = now.Add(1500 * time.Millisecond)
	m.Finish("done")

	if m.State() != StateIdle {
		t.Fatalf("expected IDLE after finish")
	}
	if got := l.events[1].Elapsed; got != 1500*time.Millisecond {
		t.Fatalf("expected elapsed 1.5s, got %s", got)
	}
	m.Finish("again")
	if len(l.States()) != 2 {
		t.Fatalf("finish on idle must not emit")
	}
}

func TestListenerFuncAndStatus(t *testing.T) {
	var seen []string
	m := NewMachine("t", ListenerFunc(func(ev StateChange) { seen = append(seen, ev.ToState.Status()) }))
	_ = m.Transition(StateTranscribing, "")
	_ = m.Transition(StateThinking, "")
	if len(seen) != 2 || seen[0] != "transcribing" || seen[1] != "thinking" {
		t.Fatalf("unexpected statuses %v", seen)
	}
}
