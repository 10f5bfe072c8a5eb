package redact

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

var enabled atomic.Bool

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-]{5,}\d`)
)

var (
	allowMu sync.RWMutex
	allowed = map[string]struct{}{}
)

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Allow keeps public numbers, such as emergency hotlines, readable in logs.
func Allow(numbers ...string) {
	allowMu.Lock()
	defer allowMu.Unlock()
	for _, n := range numbers {
		n = digitsOnly(n)
		if n != "" {
			allowed[n] = struct{}{}
		}
	}
}

// Text redacts emails and phone numbers when enabled. Arabic-Indic digits are
// folded to ASCII first so they cannot slip past the phone pattern.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := foldDigits(in)
	out = emailRe.ReplaceAllString(out, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllStringFunc(out, func(m string) string {
		if isAllowed(m) {
			return m
		}
		return "[REDACTED_PHONE]"
	})
	return out
}

// Snippet redacts and truncates a transcript to at most max runes.
func Snippet(in string, max int) string {
	out := Text(in)
	if max <= 0 || utf8.RuneCountInString(out) <= max {
		return out
	}
	runes := []rune(out)
	return string(runes[:max]) + "…"
}

func isAllowed(m string) bool {
	allowMu.RLock()
	defer allowMu.RUnlock()
	_, ok := allowed[digitsOnly(m)]
	return ok
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func foldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}
