package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/resilience"
)

// APIVersion is the messages API version header value.
const APIVersion = "2023-06-01"

// Adapter calls the messages API. It is usually the validation provider.
type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.anthropic.com",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, in llm.Request) (llm.Response, error) {
	msgs := make([]message, 0, len(in.Messages))
	for _, m := range in.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		msgs = append(msgs, message{Role: m.Role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return llm.Response{}, errorsx.New(errorsx.ReasonLLMGenerate, "anthropic: at least one message is required")
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(messagesRequest{
		Model:       a.Model,
		System:      in.System,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return llm.Response{}, errorsx.Wrap(resilience.RateLimitError{Provider: "anthropic", Message: string(b)}, errorsx.ReasonLLMRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return llm.Response{}, errorsx.New(errorsx.ReasonLLMGenerate, "anthropic: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var payload messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrap(fmt.Errorf("anthropic: decode: %w", err), errorsx.ReasonLLMMalformed)
	}
	var sb strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return llm.Response{
		Text:         strings.TrimSpace(sb.String()),
		FinishReason: payload.StopReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.InputTokens,
			CompletionTokens: payload.Usage.OutputTokens,
			TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}
