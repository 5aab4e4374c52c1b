package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// HashMode selects which normalization runs before hashing.
type HashMode string

const (
	ModeString  HashMode = "str"
	ModeEmail   HashMode = "email"
	ModePhone   HashMode = "phone"
	ModeCountry HashMode = "country"
	ModeZip     HashMode = "zip"
)

var sha256Hex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// IsHashed reports whether a value already looks like a SHA-256 hex digest.
func IsHashed(v string) bool {
	return sha256Hex.MatchString(v)
}

// SHA256Hex returns the lower-case hex SHA-256 digest of a string.
func SHA256Hex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// HashField normalizes a single identity field per its mode and returns the
// lower-case hex SHA-256 digest. Empty input, and input whose normalization
// collapses to empty, yield "". A value that is already a 64-char hex digest
// is treated as pre-hashed upstream and returned lower-cased, unchanged.
//
// Deterministic and side-effect free.
func HashField(value string, mode HashMode) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	if IsHashed(v) {
		return strings.ToLower(v)
	}

	switch mode {
	case ModeEmail:
		v = NormalizeString(v)
	case ModeCountry:
		v = NormalizeCountry(v)
	case ModePhone:
		// Phone hashing expects digits only; prefix handling is the phone
		// parser's job, not the hasher's.
		v = Digits(v)
	case ModeZip:
		v = NormalizeZip(v)
	default:
		v = NormalizeString(v)
	}

	if v == "" {
		return ""
	}
	return SHA256Hex(v)
}
