package fields

import (
	"strings"

	"github.com/svcops/intake-pipeline/internal/model"
)

// NormalizeNPI implements the NPI sync rule: a 10-digit value
// passes through verbatim; a 9-digit value is accepted with a single
// leading-zero pad to 10; anything else normalizes to the TBD
// sentinel rather than writing a malformed identifier.
func NormalizeNPI(raw string) string {
	digits := strings.TrimSpace(raw)
	if !isAllDigits(digits) {
		return model.TBDSentinel
	}
	switch len(digits) {
	case 10:
		return digits
	case 9:
		return "0" + digits
	default:
		return model.TBDSentinel
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
