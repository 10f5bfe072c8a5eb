package crisis

import (
	"sort"

	"github.com/harunnryd/sakinah/pkg/script"
)

// Lexicon maps category and script to normalized trigger phrases. It is built
// once at startup and only read afterwards.
type Lexicon struct {
	phrases map[Category]map[script.Script][]string
}

// NewLexicon normalizes and de-duplicates the given phrases. Scripts other than
// Arabic and Latin are ignored because Mixed is always served by the union.
func NewLexicon(in map[Category]map[script.Script][]string) *Lexicon {
	lx := &Lexicon{phrases: make(map[Category]map[script.Script][]string, len(in))}
	for cat, byScript := range in {
		if !cat.Valid() {
			continue
		}
		for sc, list := range byScript {
			if sc != script.Arabic && sc != script.Latin {
				continue
			}
			seen := make(map[string]struct{}, len(list))
			var out []string
			for _, p := range list {
				n := Normalize(p)
				if n == "" {
					continue
				}
				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}
				out = append(out, n)
			}
			if len(out) == 0 {
				continue
			}
			if lx.phrases[cat] == nil {
				lx.phrases[cat] = make(map[script.Script][]string)
			}
			lx.phrases[cat][sc] = out
		}
	}
	return lx
}

// Phrases returns a copy of the normalized phrases for one category and script.
// Mixed returns the union of the Arabic and Latin lists.
func (l *Lexicon) Phrases(cat Category, sc script.Script) []string {
	if l == nil {
		return nil
	}
	var out []string
	for _, s := range expand(sc) {
		out = append(out, l.phrases[cat][s]...)
	}
	return out
}

// Size counts all phrases.
func (l *Lexicon) Size() int {
	n := 0
	for _, byScript := range l.phrases {
		for _, list := range byScript {
			n += len(list)
		}
	}
	return n
}

// Categories lists categories that have at least one phrase, most severe first.
func (l *Lexicon) Categories() []Category {
	out := make([]Category, 0, len(l.phrases))
	for cat := range l.phrases {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Severity() > out[j].Severity() })
	return out
}

func expand(sc script.Script) []script.Script {
	if sc == script.Mixed {
		return []script.Script{script.Arabic, script.Latin}
	}
	return []script.Script{sc}
}

// DefaultLexicon holds the curated Arabic (including Gulf and Omani forms) and
// English trigger phrases.
func DefaultLexicon() *Lexicon {
	return NewLexicon(map[Category]map[script.Script][]string{
		CategorySuicide: {
			script.Arabic: {
				"انتحار", "انتحر", "اقتل نفسي", "أقتل نفسي", "أريد أن أموت", "ابغى اموت", "أبي أموت",
				"ودي أموت", "سأنهي حياتي", "أنهي حياتي", "أفكر في الموت", "أفكر أموت",
				"ما أبي أعيش", "لا أريد أن أعيش", "الموت أرحم",
			},
			script.Latin: {
				"suicide", "suicidal", "kill myself", "want to die", "wanna die", "end my life",
				"thinking about death", "better off dead", "no reason to live", "take my own life",
			},
		},
		CategorySelfHarm: {
			script.Arabic: {
				"أؤذي نفسي", "أذيت نفسي", "إيذاء النفس", "أجرح نفسي", "جرحت نفسي", "أضرب نفسي",
			},
			script.Latin: {
				"hurt myself", "self harm", "self-harm", "cutting myself", "cut myself", "burn myself",
			},
		},
		CategorySubstance: {
			script.Arabic: {
				"جرعة زائدة", "مخدرات", "أتعاطى", "إدمان", "مدمن", "حبوب كثير",
			},
			script.Latin: {
				"overdose", "overdosing", "addicted", "relapse", "drinking to forget", "taking too many pills",
			},
		},
		CategoryDespair: {
			script.Arabic: {
				"لا أستطيع أكثر", "ما أقدر أكثر", "ما عاد أقدر", "أريد أن أختفي", "أبي أختفي",
				"لا أمل", "ما في أمل", "يائس", "تعبت من الحياة", "ما لي فايدة",
			},
			script.Latin: {
				"can't go on", "cannot go on", "want to disappear", "hopeless", "worthless",
				"no way out", "give up on everything",
			},
		},
	})
}
