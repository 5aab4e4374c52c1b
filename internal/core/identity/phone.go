package identity

import (
	"regexp"
	"strings"
)

// Irish national significant number shapes, after country code and trunk
// prefix removal. This is a deliberate allow-list: anything that does not
// match one of these is rejected, not reformatted.
var (
	ieMobile        = regexp.MustCompile(`^8[3-9]\d{7}$`)
	ieDublin        = regexp.MustCompile(`^1\d{7}$`)
	ieOtherArea     = regexp.MustCompile(`^[2-9]\d{7,8}$`)
	nonDigitPattern = regexp.MustCompile(`\D+`)
)

func isValidNSN(nsn string) bool {
	return ieMobile.MatchString(nsn) || ieDublin.MatchString(nsn) || ieOtherArea.MatchString(nsn)
}

// Digits strips every non-digit character from a string.
func Digits(raw string) string {
	return nonDigitPattern.ReplaceAllString(raw, "")
}

// ParsePhone canonicalizes a free-form Irish phone number into the
// digits-only international form, e.g. "087 123 4567" -> "353871234567".
//
// Handles the "00" international prefix, an explicit "353" country code and
// the "0" trunk prefix. Returns ("", false) for anything that does not match
// the Irish numbering plan; callers decide whether rejected-but-plausible
// input needs manual review.
func ParsePhone(raw string) (string, bool) {
	digits := Digits(strings.TrimSpace(raw))
	if digits == "" {
		return "", false
	}

	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	if strings.HasPrefix(digits, "353") {
		nsn := digits[3:]
		if isValidNSN(nsn) {
			return "353" + nsn, true
		}
		return "", false
	}

	if strings.HasPrefix(digits, "0") {
		nsn := digits[1:]
		if isValidNSN(nsn) {
			return "353" + nsn, true
		}
		return "", false
	}

	if isValidNSN(digits) {
		return "353" + digits, true
	}

	return "", false
}

// PlausiblePhone reports whether a rejected number still looks like a phone
// number worth a manual review: 8 to 10 bare digits with no recognized
// prefix. Used by intake to flag instead of silently dropping.
func PlausiblePhone(raw string) bool {
	digits := Digits(strings.TrimSpace(raw))
	return len(digits) >= 8 && len(digits) <= 10
}
