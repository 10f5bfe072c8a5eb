package observers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/sakinah/pkg/metrics"
)

func stageEvent(name, turnID, stage string, ms int64) metrics.MetricsEvent {
	return metrics.MetricsEvent{
		Name:   name,
		Tags:   map[string]string{metrics.TagTurnID: turnID, metrics.TagStage: stage},
		Fields: map[string]any{metrics.FieldDuration: ms},
	}
}

func TestLatencyObserverLogsBreakdown(t *testing.T) {
	var buf bytes.Buffer
	o := NewLatencyObserver(slog.New(slog.NewJSONHandler(&buf, nil)), 15*time.Second)

	o.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnStarted, Tags: map[string]string{metrics.TagTurnID: "t1", metrics.TagSessionID: "s1"}})
	o.RecordEvent(stageEvent(metrics.EventSTTDone, "t1", "stt", 400))
	o.RecordEvent(stageEvent(metrics.EventGenerationDone, "t1", "generation", 1200))
	o.RecordEvent(stageEvent(metrics.EventValidationDone, "t1", "validation", 800))
	if o.Pending() != 1 {
		t.Fatalf("expected one pending turn")
	}
	o.RecordEvent(stageEvent(metrics.EventTurnDone, "t1", "", 2600))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log: %v (%s)", err, buf.String())
	}
	if line["msg"] != "turn_latency" || line["session_id"] != "s1" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["generation_ms"] != float64(1200) || line["tts_ms"] != float64(-1) {
		t.Fatalf("unexpected stage values %v", line)
	}
	if line["target_met"] != true {
		t.Fatalf("expected target met")
	}
	if o.Pending() != 0 {
		t.Fatalf("expected trace cleared")
	}
}

func TestLatencyObserverDropsNoSpeech(t *testing.T) {
	var buf bytes.Buffer
	o := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)), 0)
	o.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnStarted, Tags: map[string]string{metrics.TagTurnID: "t1"}})
	o.RecordEvent(metrics.MetricsEvent{Name: metrics.EventNoSpeech, Tags: map[string]string{metrics.TagTurnID: "t1"}})
	o.RecordEvent(stageEvent(metrics.EventTurnDone, "t1", "", 10))
	if o.Pending() != 0 || buf.Len() != 0 {
		t.Fatalf("expected no output for no-speech turn, got %q", buf.String())
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := metrics.NewMemoryObserver(), metrics.NewMemoryObserver()
	m := NewMultiObserver(a, nil)
	m.Add(b)
	m.RecordEvent(metrics.MetricsEvent{Name: "x"})
	if len(a.Named("x")) != 1 || len(b.Named("x")) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}

func TestLoggerObserverDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	o := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	o.RecordEvent(metrics.MetricsEvent{Name: "x"})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing at info level")
	}
	o = NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	o.RecordEvent(metrics.MetricsEvent{Name: "x", Tags: map[string]string{"turn_id": "t9"}})
	if !strings.Contains(buf.String(), "turn_id=t9") {
		t.Fatalf("expected tags in output, got %q", buf.String())
	}
}

func TestLoggerObserverWarnsOnBreakerOpen(t *testing.T) {
	var buf bytes.Buffer
	o := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	o.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnDone})
	o.RecordEvent(metrics.MetricsEvent{Name: metrics.EventBreakerOpen, Tags: map[string]string{metrics.TagProvider: "openai"}})
	out := buf.String()
	if strings.Contains(out, metrics.EventTurnDone) {
		t.Fatalf("turn events are debug only: %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "provider=openai") {
		t.Fatalf("expected breaker warning, got %q", out)
	}
}
