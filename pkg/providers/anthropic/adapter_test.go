package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"{\"verdict\":\"pass\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":20,"output_tokens":5}}`)
	}))
	defer srv.Close()

	a := NewAdapter("key", "")
	a.BaseURL = srv.URL
	resp, err := a.Generate(context.Background(), llm.Request{
		System:   "review",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "draft"}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"verdict":"pass"}`, resp.Text)
	assert.Equal(t, 25, resp.Usage.TotalTokens)
	assert.Equal(t, "review", got.System)
	assert.Equal(t, 1024, got.MaxTokens)
	require.Len(t, got.Messages, 1)
}

func TestGenerateOverloadedIsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
	}))
	defer srv.Close()

	a := NewAdapter("key", "")
	a.BaseURL = srv.URL
	_, err := a.Generate(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	assert.True(t, resilience.IsRateLimit(err))
}

func TestGenerateRequiresMessage(t *testing.T) {
	_, err := NewAdapter("key", "").Generate(context.Background(), llm.Request{System: "only system"})
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonLLMGenerate))
}
