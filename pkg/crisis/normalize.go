package crisis

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

var letterFolds = strings.NewReplacer(
	"ى", "ي",
	"ة", "ه",
	"’", "'",
	"‘", "'",
	"`", "'",
)

// Normalize lowercases text and strips diacritics so lexicon phrases match
// regardless of harakat, hamza placement or tatweel. Decomposition turns
// أ إ آ into a bare alef plus a combining mark, which is then removed.
func Normalize(text string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
		norm.NFC,
	)
	out, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		out = strings.ToLower(text)
	}
	out = letterFolds.Replace(out)
	return strings.Join(strings.Fields(out), " ")
}
