// Package phone canonicalizes Kenyan mobile numbers. Every lookup and
// every stored record uses the same 254XXXXXXXXX form so that webhook,
// poll and access-check paths all agree on identity.
package phone

import (
	"regexp"
	"strings"

	errors "github.com/metrocheck/crb-service/internal"
)

var canonicalPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Normalize converts user-supplied phone input into canonical form.
// Accepted inputs: 254XXXXXXXXX, 0XXXXXXXXX, +254XXXXXXXXX, or a bare
// 7XX/1XX subscriber number. Anything that does not canonicalize to
// 254[17]XXXXXXXX is rejected.
func Normalize(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	cleaned := digits.String()
	switch {
	case strings.HasPrefix(cleaned, "254"):
		// already prefixed
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7") || strings.HasPrefix(cleaned, "1"):
		cleaned = "254" + cleaned
	}

	if !canonicalPattern.MatchString(cleaned) {
		return "", errors.NewValidationError(
			"Invalid phone number format. Use 254XXXXXXXXX, 0XXXXXXXXX, or +254XXXXXXXXX",
			errors.ErrCodeInvalidPhone,
		)
	}

	return cleaned, nil
}

// IsCanonical reports whether s is already in stored canonical form.
func IsCanonical(s string) bool {
	return canonicalPattern.MatchString(s)
}
