package postprocess

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const blockSeparator = "\n\n"

type Config struct {
	Contacts Contacts
	// MaxSentences caps the reply body; zero keeps every sentence.
	MaxSentences int
	// Replacements are applied to the body after markup stripping, e.g. to
	// prefer dialect wording for speech.
	Replacements map[string]string
}

// Processor prepares orchestrator output for display and speech synthesis.
// It is deterministic and safe for concurrent use.
type Processor struct {
	contacts     Contacts
	block        string
	maxSentences int
	replacements []replacement
}

type replacement struct{ from, to string }

func NewProcessor(cfg Config) *Processor {
	repl := make([]replacement, 0, len(cfg.Replacements))
	for from, to := range cfg.Replacements {
		if from != "" {
			repl = append(repl, replacement{from: from, to: to})
		}
	}
	// Longest match first so overlapping phrases resolve the same way every time.
	sort.Slice(repl, func(i, j int) bool {
		if len(repl[i].from) != len(repl[j].from) {
			return len(repl[i].from) > len(repl[j].from)
		}
		return repl[i].from < repl[j].from
	})
	contacts := cfg.Contacts.withDefaults()
	return &Processor{
		contacts:     contacts,
		block:        renderBlock(contacts),
		maxSentences: cfg.MaxSentences,
		replacements: repl,
	}
}

// Contacts returns the numbers in effect after defaults.
func (p *Processor) Contacts() Contacts { return p.contacts }

// EmergencyBlock returns the verbatim block appended to crisis replies.
func (p *Processor) EmergencyBlock() string { return p.block }

// Process strips markup, applies the sentence cap and, for crisis turns,
// appends the emergency block. Process(Process(x)) == Process(x).
func (p *Processor) Process(text string, crisis bool) string {
	body, hadBlock := p.splitBlock(text)
	body = StripMarkup(body)
	for _, r := range p.replacements {
		body = strings.ReplaceAll(body, r.from, r.to)
	}
	body = truncateSentences(body, p.maxSentences)
	if !crisis && !hadBlock {
		return body
	}
	if body == "" {
		return p.block
	}
	return body + blockSeparator + p.block
}

// splitBlock removes an already appended block so reprocessing never duplicates it.
func (p *Processor) splitBlock(text string) (string, bool) {
	idx := strings.Index(text, p.block)
	if idx < 0 {
		return text, false
	}
	return strings.TrimSpace(text[:idx] + text[idx+len(p.block):]), true
}

var (
	fenceRe    = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9_-]*\\s*$")
	linkRe     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	headingRe  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletRe   = regexp.MustCompile(`(?m)^\s*[-*+•·]\s+`)
	numberedRe = regexp.MustCompile(`(?m)^\s*\d{1,2}[.)]\s+`)
	quoteRe    = regexp.MustCompile(`(?m)^\s*>\s?`)
	ruleRe     = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	underRe    = regexp.MustCompile(`(^|[\s(])_{1,2}([^_\n]+)_{1,2}`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)
)

// StripMarkup removes formatting that a speech engine would read aloud:
// markdown emphasis, headings, list markers, fences, link targets and emoji.
func StripMarkup(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = fenceRe.ReplaceAllString(text, "")
	text = ruleRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = numberedRe.ReplaceAllString(text, "")
	text = quoteRe.ReplaceAllString(text, "")
	text = underRe.ReplaceAllString(text, "$1$2")
	text = strings.NewReplacer("**", "", "*", "", "~~", "", "`", "").Replace(text)
	text = strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0xFE0F || r == 0x200D || r == 0x20E3:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '؟' || r == '۔'
}

func truncateSentences(text string, maxSentences int) string {
	if maxSentences <= 0 || text == "" {
		return text
	}
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if !isTerminator(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		count++
		if count >= maxSentences {
			return strings.TrimSpace(string(runes[:i+1]))
		}
	}
	return text
}
