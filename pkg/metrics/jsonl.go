package metrics

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"
)

type jsonlRecord struct {
	Event  string            `json:"event"`
	Time   time.Time         `json:"time"`
	Value  float64           `json:"value,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

// JSONLObserver appends one JSON object per event for offline analysis.
// String fields are dropped so only identifiers and measurements leave the
// process. Output is buffered until Flush.
type JSONLObserver struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLObserver{buf: buf, enc: enc}
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	rec := jsonlRecord{Event: ev.Name, Time: ev.Time.UTC(), Value: ev.Value, Tags: ev.Tags}
	for k, v := range ev.Fields {
		if _, isText := v.(string); isText {
			continue
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]any, len(ev.Fields))
		}
		rec.Fields[k] = v
	}
	o.mu.Lock()
	_ = o.enc.Encode(rec)
	o.mu.Unlock()
}

func (o *JSONLObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Flush()
}
