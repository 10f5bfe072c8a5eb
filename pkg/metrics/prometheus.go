package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver turns pipeline events into Prometheus series.
type PrometheusObserver struct {
	turnsTotal     *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	stageLatency   *prometheus.HistogramVec
	stageOutcomes  *prometheus.CounterVec
	crisisTotal    *prometheus.CounterVec
	noSpeechTotal  prometheus.Counter
	budgetExceeded prometheus.Counter
	providerEvents *prometheus.CounterVec
	alertsTotal    *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	buckets := []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30}
	m := &PrometheusObserver{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "completed_total",
			Help:      "Completed conversation turns by verdict and detected script",
		}, []string{"verdict", "script", "input"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "duration_seconds",
			Help:      "End-to-end turn latency",
			Buckets:   buckets,
		}, []string{"input"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each turn stage",
			Buckets:   buckets,
		}, []string{"stage"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "stage_outcomes_total",
			Help:      "Stage outcomes, including degraded provider paths",
		}, []string{"stage", "status"}),
		crisisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "safety",
			Name:      "crisis_turns_total",
			Help:      "Turns flagged by the crisis keyword matcher",
		}, []string{"category"}),
		noSpeechTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "no_speech_total",
			Help:      "Audio inputs rejected as containing no speech",
		}),
		budgetExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "turn",
			Name:      "budget_exceeded_total",
			Help:      "Turns slower than the configured response-time budget",
		}),
		providerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "provider",
			Name:      "events_total",
			Help:      "Rate limits and circuit breaker transitions per provider",
		}, []string{"provider", "event"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sakinah",
			Subsystem: "safety",
			Name:      "alerts_total",
			Help:      "Crisis alerts sent to the on-call counsellor",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal, m.turnLatency, m.stageLatency, m.stageOutcomes,
		m.crisisTotal, m.noSpeechTotal, m.budgetExceeded, m.providerEvents, m.alertsTotal,
	)
	return m
}

func (m *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	if m == nil {
		return
	}
	tag := func(k string) string { return ev.Tags[k] }
	switch ev.Name {
	case EventTurnDone:
		m.turnsTotal.WithLabelValues(tag(TagVerdict), tag(TagScript), tag(TagInputKind)).Inc()
		if d, ok := Duration(ev); ok {
			m.turnLatency.WithLabelValues(tag(TagInputKind)).Observe(d.Seconds())
		}
	case EventSTTDone, EventGenerationDone, EventValidationDone, EventTTSDone:
		stage := tag(TagStage)
		if d, ok := Duration(ev); ok {
			m.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
		}
		m.stageOutcomes.WithLabelValues(stage, tag(TagStatus)).Inc()
	case EventCrisisDetected:
		m.crisisTotal.WithLabelValues(tag(TagCategory)).Inc()
	case EventNoSpeech:
		m.noSpeechTotal.Inc()
	case EventLatencyExceeded:
		m.budgetExceeded.Inc()
	case EventRateLimit, EventBreakerOpen, EventBreakerClose, EventBreakerDenied:
		m.providerEvents.WithLabelValues(tag(TagProvider), ev.Name).Inc()
	case EventAlertSent:
		m.alertsTotal.WithLabelValues("sent").Inc()
	case EventAlertFailed:
		m.alertsTotal.WithLabelValues("failed").Inc()
	}
}

// Duration reads the duration_ms field of an event.
func Duration(ev MetricsEvent) (time.Duration, bool) {
	switch v := ev.Fields[FieldDuration].(type) {
	case int64:
		return time.Duration(v) * time.Millisecond, true
	case int:
		return time.Duration(v) * time.Millisecond, true
	case float64:
		return time.Duration(v * float64(time.Millisecond)), true
	case time.Duration:
		return v, true
	}
	return 0, false
}
