package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/sakinah/pkg/metrics"
)

// LatencyObserver folds the stage events of a turn into one breakdown line,
// logged when the turn completes.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	budget time.Duration
	log    *slog.Logger
}

type trace struct {
	sessionID string
	stages    map[string]time.Duration
}

func NewLatencyObserver(log *slog.Logger, budget time.Duration) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		budget: budget,
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	turnID := ev.Tags[metrics.TagTurnID]
	if turnID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventTurnStarted:
		o.traces[turnID] = &trace{sessionID: ev.Tags[metrics.TagSessionID], stages: make(map[string]time.Duration, 4)}
	case metrics.EventSTTDone, metrics.EventGenerationDone, metrics.EventValidationDone, metrics.EventTTSDone:
		t := o.traces[turnID]
		if t == nil {
			return
		}
		if d, ok := metrics.Duration(ev); ok {
			t.stages[ev.Tags[metrics.TagStage]] = d
		}
	case metrics.EventNoSpeech:
		delete(o.traces, turnID)
	case metrics.EventTurnDone:
		t := o.traces[turnID]
		delete(o.traces, turnID)
		if t == nil {
			return
		}
		total, _ := metrics.Duration(ev)
		o.log.Info("turn_latency",
			"session_id", t.sessionID,
			"turn_id", turnID,
			"stt_ms", stageMs(t, "stt"),
			"generation_ms", stageMs(t, "generation"),
			"validation_ms", stageMs(t, "validation"),
			"tts_ms", stageMs(t, "tts"),
			"total_ms", total.Milliseconds(),
			"target_met", o.budget <= 0 || total <= o.budget,
		)
	}
}

// Pending returns the number of turns still in flight.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.traces)
}

func stageMs(t *trace, stage string) int64 {
	d, ok := t.stages[stage]
	if !ok {
		return -1
	}
	return d.Milliseconds()
}
