package mock

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/sakinah/pkg/llm"
)

// LLMConfig scripts the mock. Replies and Errors are consumed per call; once
// exhausted the last entry repeats, and ResponseText is used when both are empty.
type LLMConfig struct {
	Name         string
	ResponseText string
	Replies      []string
	Errors       []error
	Delay        time.Duration
	Panic        bool
}

type LLMAdapter struct {
	cfg LLMConfig

	mu       sync.Mutex
	calls    int
	requests []llm.Request
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" && len(cfg.Replies) == 0 {
		cfg.ResponseText = "mock response"
	}
	if cfg.Name == "" {
		cfg.Name = "mock_llm"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return a.cfg.Name }

func (a *LLMAdapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	idx := a.calls
	a.calls++
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	if a.cfg.Panic {
		panic("mock llm panic")
	}
	if a.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		case <-time.After(a.cfg.Delay):
		}
	}
	if err := pick(a.cfg.Errors, idx); err != nil {
		return llm.Response{}, err
	}
	text := a.cfg.ResponseText
	if len(a.cfg.Replies) > 0 {
		text = a.cfg.Replies[min(idx, len(a.cfg.Replies)-1)]
	}
	return llm.Response{Text: text, FinishReason: "stop"}, nil
}

// Calls returns how many times Generate ran.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Requests returns a copy of every request received.
func (a *LLMAdapter) Requests() []llm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Request, len(a.requests))
	copy(out, a.requests)
	return out
}

func pick(errs []error, idx int) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[min(idx, len(errs)-1)]
}
