package observers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harunnryd/sakinah/pkg/metrics"
)

// warnEvents are logged at WARN; everything else is DEBUG.
var warnEvents = map[string]bool{
	metrics.EventBreakerOpen:   true,
	metrics.EventBreakerDenied: true,
	metrics.EventRateLimit:     true,
	metrics.EventAlertFailed:   true,
}

// LoggerObserver mirrors events into the structured log. Events never carry
// transcript text, so nothing here needs redaction.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level := slog.LevelDebug
	if warnEvents[ev.Name] {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !o.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, 2+len(ev.Tags)+len(ev.Fields))
	attrs = append(attrs, slog.String("event", ev.Name))
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(ctx, level, "metrics_event", attrs...)
}

// MultiObserver fans each event out to every registered observer in order.
type MultiObserver struct {
	mu   sync.RWMutex
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range list {
		m.Add(obs)
	}
	return m
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}

func (m *MultiObserver) Add(obs metrics.Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	m.list = append(m.list, obs)
	m.mu.Unlock()
}
