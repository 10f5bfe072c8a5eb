package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"google.golang.org/api/option"
)

// Adapter is a Generator backed by the Gemini API. It can serve as either the
// primary or the validation provider.
type Adapter struct {
	client  *genai.Client
	modelID string
}

func NewAdapter(ctx context.Context, apiKey, modelID string) (*Adapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errorsx.New(errorsx.ReasonConfigInvalid, "gemini: api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfigInvalid)
	}
	return &Adapter{client: client, modelID: modelID}, nil
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, errorsx.New(errorsx.ReasonLLMGenerate, "gemini: at least one message is required")
	}
	model := a.client.GenerativeModel(a.modelID)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	cs := model.StartChat()
	cs.History = History(req.Messages[:len(req.Messages)-1])

	last := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Response{}, errorsx.New(errorsx.ReasonLLMMalformed, "gemini: no candidates")
	}
	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := llm.Response{
		Text:         strings.TrimSpace(sb.String()),
		FinishReason: fmt.Sprint(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// History maps chat messages to Gemini contents. System messages are dropped
// because they travel as the system instruction.
func History(msgs []llm.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" || m.Role == llm.RoleSystem {
			continue
		}
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}
	return out
}

func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
