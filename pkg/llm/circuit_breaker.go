package llm

import (
	"context"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/metrics"
	"github.com/harunnryd/sakinah/pkg/resilience"
)

// ErrCircuitOpen is returned without calling the provider while the breaker is open.
var ErrCircuitOpen = errorsx.New(errorsx.ReasonLLMCircuitOpen, "llm: circuit open")

// CircuitBreakerAdapter wraps a Generator with circuit breaking so a failing
// provider is skipped quickly and the orchestrator reaches its fallback sooner.
type CircuitBreakerAdapter struct {
	inner   Generator
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner Generator, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	before := a.breaker.State()
	if !a.breaker.Allow() {
		a.record(metrics.EventBreakerDenied)
		return Response{}, ErrCircuitOpen
	}
	resp, err := a.inner.Generate(ctx, req)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit)
		}
		a.breaker.OnError(err)
	} else {
		a.breaker.OnSuccess()
	}
	a.transition(before, a.breaker.State())
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (a *CircuitBreakerAdapter) transition(before, after resilience.BreakerState) {
	switch {
	case after == resilience.BreakerOpen && before != resilience.BreakerOpen:
		a.record(metrics.EventBreakerOpen)
	case after == resilience.BreakerClosed && before != resilience.BreakerClosed:
		a.record(metrics.EventBreakerClose)
	}
}

func (a *CircuitBreakerAdapter) record(name string) {
	metrics.Emit(a.obs, metrics.MetricsEvent{
		Name: name,
		Tags: map[string]string{
			metrics.TagProvider:  a.inner.Name(),
			metrics.TagComponent: "llm",
		},
	})
}
