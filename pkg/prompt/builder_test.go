package prompt

import (
	"testing"

	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelectsTemplate(t *testing.T) {
	b := NewBuilder(Profile{}, Phrases{})

	tests := []struct {
		name     string
		in       Input
		contains []string
		absent   []string
	}{
		{
			name:     "crisis template",
			in:       Input{Transcript: "أريد أن أموت", Script: script.Arabic, Crisis: crisis.Result{Flag: true, Category: crisis.CategorySuicide}},
			contains: []string{"SUICIDE", "9999", "never agree that harming themselves", "Omani Arabic"},
			absent:   []string{"Culturally appropriate phrases"},
		},
		{
			name:     "arabic supportive",
			in:       Input{Transcript: "أنا متضايق", Script: script.Arabic},
			contains: []string{"Omani Arabic dialect", "cognitive behavioural", OmaniPhrases.Greeting},
			absent:   []string{"crisis"},
		},
		{
			name:     "latin supportive",
			in:       Input{Transcript: "I feel low", Script: script.Latin},
			contains: []string{"reply in clear, simple English"},
		},
		{
			name:     "mixed supportive",
			in:       Input{Transcript: "I'm stressed about work اليوم", Script: script.Mixed},
			contains: []string{"mirror their code-switching"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := b.Build(tt.in)
			for _, want := range tt.contains {
				assert.Contains(t, p.Instructions, want)
			}
			for _, not := range tt.absent {
				assert.NotContains(t, p.Instructions, not)
			}
			assert.Equal(t, tt.in.Transcript, p.Transcript)
		})
	}
}

func TestPayloadRequestAndShortened(t *testing.T) {
	b := NewBuilder(DefaultProfile(), OmaniPhrases)
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "مرحبا"},
		{Role: llm.RoleAssistant, Content: "أهلاً"},
	}
	p := b.Build(Input{Transcript: "كيف أتعامل مع القلق؟", Script: script.Arabic, History: history})

	req := p.Request(300, 0.7)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "كيف أتعامل مع القلق؟", req.LastUser())
	assert.Equal(t, p.Instructions, req.System)
	assert.Equal(t, 300, req.MaxTokens)

	short := p.Shortened()
	assert.True(t, short.IsShortened())
	assert.False(t, p.IsShortened())
	assert.Empty(t, short.Context)
	assert.Less(t, len(short.Instructions), len(p.Instructions))
	assert.Len(t, short.Request(300, 0.7).Messages, 1)

	history[0].Content = "changed"
	assert.Equal(t, "مرحبا", p.Context[0].Content)
}

func TestValidationInstruction(t *testing.T) {
	b := NewBuilder(Profile{}, Phrases{})
	crisisInstr := b.ValidationInstruction(crisis.Result{Flag: true, Category: crisis.CategorySelfHarm})
	assert.Contains(t, crisisInstr, "SELF_HARM")
	assert.Contains(t, crisisInstr, `"verdict":"fail"`)
	assert.Contains(t, b.ValidationInstruction(crisis.Result{}), "cultural and religious appropriateness")
}

func TestSafeReplyNeverEmpty(t *testing.T) {
	b := NewBuilder(Profile{}, Phrases{})
	for _, sc := range []script.Script{script.Arabic, script.Latin, script.Mixed} {
		for _, flag := range []bool{true, false} {
			assert.NotEmpty(t, b.SafeReply(sc, flag))
		}
	}
	assert.Contains(t, b.SafeReply(script.Arabic, true), "لست وحدك")
}
