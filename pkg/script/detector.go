// Package script classifies transcripts as Arabic, Latin or code-switched text.
package script

import (
	"strings"
	"unicode"
)

type Script string

const (
	Arabic Script = "ARABIC"
	Latin  Script = "LATIN"
	Mixed  Script = "MIXED"
)

const (
	defaultMinLetters    = 3
	defaultMinorityShare = 0.15
)

// Detector counts letters per script. Texts with fewer than MinLetters letters
// are classified as Default.
type Detector struct {
	MinLetters    int
	MinorityShare float64
	Default       Script
}

// NewDetector derives the default script from a language code such as "ar-OM".
func NewDetector(primaryLanguage string) Detector {
	def := Latin
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(primaryLanguage)), "ar") {
		def = Arabic
	}
	return Detector{
		MinLetters:    defaultMinLetters,
		MinorityShare: defaultMinorityShare,
		Default:       def,
	}
}

// Detect returns Mixed when both scripts exceed the minority share of letters,
// otherwise the dominant script.
func (d Detector) Detect(text string) Script {
	arabic, latin := count(text)
	total := arabic + latin
	minLetters := d.MinLetters
	if minLetters <= 0 {
		minLetters = defaultMinLetters
	}
	if total < minLetters {
		return d.fallback()
	}
	share := d.MinorityShare
	if share <= 0 {
		share = defaultMinorityShare
	}
	arShare := float64(arabic) / float64(total)
	laShare := float64(latin) / float64(total)
	switch {
	case arShare > share && laShare > share:
		return Mixed
	case arabic >= latin:
		return Arabic
	default:
		return Latin
	}
}

// Present lists the scripts that occur in text at all, Arabic first.
func Present(text string) []Script {
	arabic, latin := count(text)
	var out []Script
	if arabic > 0 {
		out = append(out, Arabic)
	}
	if latin > 0 {
		out = append(out, Latin)
	}
	return out
}

func (d Detector) fallback() Script {
	if d.Default == "" {
		return Arabic
	}
	return d.Default
}

func count(text string) (arabic, latin int) {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	return arabic, latin
}
