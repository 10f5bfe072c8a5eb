package llm

import (
	"context"
	"errors"
)

// Role names follow the chat-completion convention shared by all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when a provider answers without text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

type Message struct {
	Role    string
	Content string
}

// Request is the provider-neutral completion input.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Generator is implemented by every chat-completion provider adapter.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// LastUser returns the content of the last user message, if any.
func (r Request) LastUser() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
