package metrics

import "time"

// MetricsEvent is one observation emitted by the turn pipeline or a provider wrapper.
// Tags carry identifiers and low-cardinality labels; Fields carry measurements.
// Neither ever carries transcript or reply text.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Emit records ev on obs, stamping the time when missing. A nil observer is a no-op.
func Emit(obs Observer, ev MetricsEvent) {
	if obs == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	obs.RecordEvent(ev)
}
