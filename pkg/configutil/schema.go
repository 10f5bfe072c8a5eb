package configutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/sakinah/pkg/errorsx"
)

// Schema lists the keys a vendor settings map may carry. Secret keys are
// masked by Masked.
type Schema struct {
	Required     []string
	Optional     []string
	Secret       []string
	AllowUnknown bool
}

// SettingsError reports every problem of a settings map at once.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks input against schema. Keys match regardless of
// case, underscores and hyphens. A required key holding a blank string counts
// as missing. Failures wrap *SettingsError with errorsx.ReasonConfigInvalid.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = true
	}
	for _, k := range schema.Required {
		known[normalizeKey(k)] = true
	}

	present := make(map[string]any, len(input))
	serr := &SettingsError{}
	for k, v := range input {
		nk := normalizeKey(k)
		present[nk] = v
		if !known[nk] && !schema.AllowUnknown {
			serr.Unknown = append(serr.Unknown, k)
		}
	}
	for _, k := range schema.Required {
		if v, ok := present[normalizeKey(k)]; !ok || isBlank(v) {
			serr.Missing = append(serr.Missing, k)
		}
	}

	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	sort.Strings(serr.Missing)
	sort.Strings(serr.Unknown)
	return errorsx.Wrap(serr, errorsx.ReasonConfigInvalid)
}

// Masked returns a copy of input safe to log: secret values keep only their
// last four characters.
func Masked(input map[string]any, schema Schema) map[string]any {
	secret := make(map[string]bool, len(schema.Secret))
	for _, k := range schema.Secret {
		secret[normalizeKey(k)] = true
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if !secret[normalizeKey(k)] {
			out[k] = v
			continue
		}
		s := fmt.Sprint(v)
		if len(s) <= 4 {
			out[k] = "****"
			continue
		}
		out[k] = "****" + s[len(s)-4:]
	}
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
