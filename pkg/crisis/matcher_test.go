package crisis

import (
	"context"
	"testing"

	"github.com/harunnryd/sakinah/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherMatch(t *testing.T) {
	m := NewMatcher(DefaultLexicon())
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		script   script.Script
		wantFlag bool
		wantCat  Category
	}{
		{name: "arabic suicide", text: "أريد أن أموت", script: script.Arabic, wantFlag: true, wantCat: CategorySuicide},
		{name: "arabic with harakat", text: "أُرِيدُ أَنْ أَمُوتَ", script: script.Arabic, wantFlag: true, wantCat: CategorySuicide},
		{name: "bare alef spelling", text: "اريد ان اموت", script: script.Arabic, wantFlag: true, wantCat: CategorySuicide},
		{name: "tatweel", text: "انتحـــار", script: script.Arabic, wantFlag: true, wantCat: CategorySuicide},
		{name: "english case insensitive", text: "Sometimes I want to DIE", script: script.Latin, wantFlag: true, wantCat: CategorySuicide},
		{name: "curly apostrophe", text: "I can’t go on like this", script: script.Latin, wantFlag: true, wantCat: CategoryDespair},
		{name: "partial phrase containment", text: "thinking about suicidal plans", script: script.Latin, wantFlag: true, wantCat: CategorySuicide},
		{name: "severity beats order", text: "I feel hopeless and I want to hurt myself", script: script.Latin, wantFlag: true, wantCat: CategorySelfHarm},
		{name: "suicide outranks everything", text: "hopeless, overdose, kill myself", script: script.Latin, wantFlag: true, wantCat: CategorySuicide},
		{name: "substance", text: "I took an overdose last week", script: script.Latin, wantFlag: true, wantCat: CategorySubstance},
		{name: "mixed uses union", text: "I'm so tired يائس اليوم", script: script.Mixed, wantFlag: true, wantCat: CategoryDespair},
		{name: "minority script still scanned", text: "والله تعبت من كل شي في البيت والشغل والناس kill myself", script: script.Arabic, wantFlag: true, wantCat: CategorySuicide},
		{name: "no match", text: "I'm stressed about work اليوم", script: script.Mixed},
		{name: "empty", text: "", script: script.Arabic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(ctx, tt.text, tt.script)
			assert.Equal(t, tt.wantFlag, res.Flag)
			assert.Equal(t, tt.wantCat, res.Category)
		})
	}
}

func TestEverySuicidePhraseFlagsSuicide(t *testing.T) {
	lx := DefaultLexicon()
	m := NewMatcher(lx)
	for _, sc := range []script.Script{script.Arabic, script.Latin} {
		for _, phrase := range lx.Phrases(CategorySuicide, sc) {
			for _, wrapped := range []string{phrase, "well " + phrase + " يعني", "والله " + phrase + " okay"} {
				res := m.Match(context.Background(), wrapped, script.NewDetector("ar-OM").Detect(wrapped))
				require.True(t, res.Flag, wrapped)
				assert.Equal(t, CategorySuicide, res.Category, wrapped)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "اريد ان اموت", Normalize("  أُريدُ   أنْ أموت "))
	assert.Equal(t, "مستشفي رحمه", Normalize("مستشفى رحمة"))
	assert.Equal(t, "can't go on", Normalize("CAN’T go on"))
}

func TestLexiconIsCopiedOnRead(t *testing.T) {
	lx := DefaultLexicon()
	before := lx.Size()
	list := lx.Phrases(CategorySuicide, script.Latin)
	require.NotEmpty(t, list)
	list[0] = "mutated"
	assert.NotEqual(t, "mutated", lx.Phrases(CategorySuicide, script.Latin)[0])
	assert.Equal(t, before, lx.Size())
	assert.Equal(t, BySeverity, lx.Categories())
}

func TestSeverityOrder(t *testing.T) {
	for i := 1; i < len(BySeverity); i++ {
		assert.Greater(t, BySeverity[i-1].Severity(), BySeverity[i].Severity())
	}
	assert.False(t, CategoryNone.Valid())
}
