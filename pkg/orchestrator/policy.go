package orchestrator

import "strings"

// Policy decides what happens when the validation provider is unavailable.
type Policy string

const (
	// PolicyFailOpen uses the unvalidated draft, favouring availability.
	PolicyFailOpen Policy = "fail_open"
	// PolicyFailClosedOnCrisis replaces unvalidated crisis drafts with the safe reply.
	PolicyFailClosedOnCrisis Policy = "fail_closed_on_crisis"
)

// ParsePolicy normalizes a configured policy, defaulting to fail-open.
func ParsePolicy(raw string) Policy {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyFailClosedOnCrisis:
		return PolicyFailClosedOnCrisis
	default:
		return PolicyFailOpen
	}
}

func (p Policy) blocks(crisis bool) bool {
	return p == PolicyFailClosedOnCrisis && crisis
}
