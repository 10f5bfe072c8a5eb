package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryMapsRoles(t *testing.T) {
	h := History([]llm.Message{
		{Role: llm.RoleSystem, Content: "ignored"},
		{Role: llm.RoleUser, Content: "مرحبا"},
		{Role: llm.RoleAssistant, Content: "أهلاً"},
		{Role: llm.RoleUser, Content: "  "},
	})
	require.Len(t, h, 2)
	assert.Equal(t, "user", h[0].Role)
	assert.Equal(t, "model", h[1].Role)
	assert.Equal(t, genai.Text("أهلاً"), h[1].Parts[0])
}

func TestNewAdapterRequiresKey(t *testing.T) {
	_, err := NewAdapter(context.Background(), " ", "")
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid))
}
