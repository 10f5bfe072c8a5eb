package crisis

import (
	"context"
	"strings"

	"github.com/harunnryd/sakinah/pkg/script"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("sakinah.pkg.crisis")

// Result is the matcher verdict for one transcript.
type Result struct {
	Flag     bool
	Category Category
	// Phrase is the normalized lexicon entry that matched.
	Phrase string
}

// Matcher scans normalized transcripts for lexicon phrases.
type Matcher struct {
	lexicon *Lexicon
}

func NewMatcher(lexicon *Lexicon) *Matcher {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Matcher{lexicon: lexicon}
}

// Match checks the lexicon of the detected script, plus any other script whose
// letters occur in the text, and returns the most severe category found.
// Containment is substring based so partial phrases still trigger.
func (m *Matcher) Match(ctx context.Context, text string, detected script.Script) Result {
	_, span := tracer.Start(ctx, "crisis.match")
	defer span.End()

	res := m.match(Normalize(text), scopes(text, detected))
	span.SetAttributes(
		attribute.String("sakinah.script", string(detected)),
		attribute.Bool("sakinah.crisis.flag", res.Flag),
		attribute.String("sakinah.crisis.category", string(res.Category)),
	)
	return res
}

func (m *Matcher) match(normalized string, scripts []script.Script) Result {
	if normalized == "" {
		return Result{}
	}
	for _, cat := range BySeverity {
		for _, sc := range scripts {
			for _, phrase := range m.lexicon.Phrases(cat, sc) {
				if strings.Contains(normalized, phrase) {
					return Result{Flag: true, Category: cat, Phrase: phrase}
				}
			}
		}
	}
	return Result{}
}

func scopes(text string, detected script.Script) []script.Script {
	out := expand(detected)
	for _, present := range script.Present(text) {
		found := false
		for _, s := range out {
			if s == present {
				found = true
				break
			}
		}
		if !found {
			out = append(out, present)
		}
	}
	return out
}
