package metrics

import (
	"hash/fnv"
	"sync/atomic"
)

// SamplingObserver keeps about rate of all events. Events tagged with a
// session are sampled per session, so a kept session keeps every turn event.
// Names listed as always bypass sampling.
type SamplingObserver struct {
	inner     Observer
	threshold uint32
	counter   atomic.Uint32
	always    map[string]bool
}

func NewSamplingObserver(inner Observer, rate float64, always ...string) *SamplingObserver {
	switch {
	case rate < 0:
		rate = 0
	case rate > 1:
		rate = 1
	}
	keep := make(map[string]bool, len(always))
	for _, name := range always {
		keep[name] = true
	}
	return &SamplingObserver{
		inner:     inner,
		threshold: uint32(rate * 10000),
		always:    keep,
	}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.always[ev.Name] || s.keep(ev) {
		s.inner.RecordEvent(ev)
	}
}

func (s *SamplingObserver) keep(ev MetricsEvent) bool {
	switch s.threshold {
	case 0:
		return false
	case 10000:
		return true
	}
	var bucket uint32
	if id := ev.Tags[TagSessionID]; id != "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		bucket = h.Sum32() % 10000
	} else {
		bucket = (s.counter.Add(1) * 7919) % 10000
	}
	return bucket < s.threshold
}
