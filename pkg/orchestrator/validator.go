package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
)

// ValidationRequest is what the secondary provider reviews.
type ValidationRequest struct {
	Draft       string
	Transcript  string
	Instruction string
	Crisis      bool
}

// ValidationResult is the parsed pass/fail signal.
type ValidationResult struct {
	Pass          bool
	CorrectedText string
}

// Validator reviews a primary draft.
type Validator interface {
	Validate(ctx context.Context, req ValidationRequest) (ValidationResult, error)
	Name() string
}

// LLMValidator turns any chat-completion provider into a Validator.
type LLMValidator struct {
	gen         llm.Generator
	maxTokens   int
	temperature float64
}

func NewLLMValidator(gen llm.Generator, maxTokens int, temperature float64) *LLMValidator {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &LLMValidator{gen: gen, maxTokens: maxTokens, temperature: temperature}
}

func (v *LLMValidator) Name() string { return v.gen.Name() }

func (v *LLMValidator) Validate(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	user := fmt.Sprintf("User message:\n%s\n\nDraft reply:\n%s\n\nCrisis detected: %t", req.Transcript, req.Draft, req.Crisis)
	resp, err := v.gen.Generate(ctx, llm.Request{
		System:      req.Instruction,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   v.maxTokens,
		Temperature: v.temperature,
	})
	if err != nil {
		return ValidationResult{}, errorsx.Wrap(err, errorsx.ReasonValidate)
	}
	return ParseVerdict(resp.Text)
}

type verdictPayload struct {
	Verdict       string `json:"verdict"`
	CorrectedText string `json:"corrected_text"`
}

var (
	verdictLineRe = regexp.MustCompile(`(?i)verdict\s*:\s*(pass|fail)`)
	improvedRe    = regexp.MustCompile(`(?is)(?:improved response|corrected response)\s*:\s*(.*?)(?:\n\s*\n|\nvalidation|\z)`)
)

// ParseVerdict accepts the JSON verdict format and falls back to the labelled
// "VERDICT:" / "IMPROVED RESPONSE:" sections. Anything else is malformed.
func ParseVerdict(raw string) (ValidationResult, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return ValidationResult{}, errorsx.New(errorsx.ReasonValidateMalformed, "validator: empty response")
	}
	if obj := extractJSONObject(text); strings.HasPrefix(obj, "{") {
		var payload verdictPayload
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			return fromVerdict(payload.Verdict, payload.CorrectedText)
		}
	}
	verdict := ""
	if m := verdictLineRe.FindStringSubmatch(text); m != nil {
		verdict = m[1]
	}
	corrected := ""
	if m := improvedRe.FindStringSubmatch(text); m != nil {
		corrected = strings.TrimSpace(m[1])
	}
	if verdict == "" && corrected != "" {
		verdict = "fail"
	}
	return fromVerdict(verdict, corrected)
}

func fromVerdict(verdict, corrected string) (ValidationResult, error) {
	switch strings.ToLower(strings.TrimSpace(verdict)) {
	case "pass", "passed", "approve", "allow":
		return ValidationResult{Pass: true}, nil
	case "fail", "failed", "reject", "edit":
		return ValidationResult{Pass: false, CorrectedText: strings.TrimSpace(corrected)}, nil
	default:
		return ValidationResult{}, errorsx.New(errorsx.ReasonValidateMalformed, "validator: verdict invalid: %q", verdict)
	}
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
