package plans

import "strings"

// Plan is an entitlement tier. The zero value means the plan name on record
// did not match any known tier.
type Plan string

const (
	Unrecognized Plan = ""
	Free         Plan = "free"
	Standard     Plan = "standard"
	Teams        Plan = "teams"
)

func (p Plan) Known() bool {
	switch p {
	case Free, Standard, Teams:
		return true
	default:
		return false
	}
}

// FromPaymentName matches free-text plan names coming from the billing side.
// Matching is case-insensitive and checks teams, then standard, then free.
func FromPaymentName(name string) Plan {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, string(Teams)):
		return Teams
	case strings.Contains(n, string(Standard)):
		return Standard
	case strings.Contains(n, string(Free)):
		return Free
	default:
		return Unrecognized
	}
}

// FromSubscriptionName behaves like FromPaymentName except that trial plans
// ("trial", or the Portuguese "teste") are treated as free.
func FromSubscriptionName(name string) Plan {
	n := strings.ToLower(name)
	if strings.Contains(n, "trial") || strings.Contains(n, "teste") {
		return Free
	}
	return FromPaymentName(name)
}
