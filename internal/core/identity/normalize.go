package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RawIdentity carries the untrusted, caller-supplied identity fields of a
// lead as they arrived on the wire. Any field may be empty.
type RawIdentity struct {
	Name       string `json:"name,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Zip        string `json:"zip,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	ExternalID string `json:"external_id,omitempty"`

	// Browser click identifiers and client transport hints. These are opaque
	// tokens, not personal identifiers, and are never normalized or hashed.
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	ClientIP        string `json:"client_ip,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
}

// NormalizedIdentity is the canonical form of a RawIdentity, ready for
// hashing. Empty strings mean "absent".
type NormalizedIdentity struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Zip        string
	City       string
	State      string
	Country    string
	ExternalID string

	// Passed through untouched.
	FBP             string
	FBC             string
	ClientIP        string
	ClientUserAgent string
}

var wsRun = regexp.MustCompile(`\s+`)

// stripAccents removes combining marks after NFD decomposition
// ("Máire" -> "Maire"). Best effort: on transform failure the input is
// returned unchanged.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil || out == "" {
		return s
	}
	return out
}

// NormalizeString canonicalizes a generic text field: trim, Unicode
// lower-case, best-effort accent stripping, whitespace collapse. Never
// fails; unusable input degrades to "".
func NormalizeString(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	v = strings.ToLower(v)
	v = stripAccents(v)
	v = wsRun.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}

// NormalizeCountry lower-cases a country code. Codes are ASCII, so no
// accent handling is needed.
func NormalizeCountry(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeZip canonicalizes a postal code (Eircode): strip all whitespace,
// upper-case to the display form, then lower-case because hashing always runs
// on the lower-case representation.
func NormalizeZip(v string) string {
	v = wsRun.ReplaceAllString(strings.TrimSpace(v), "")
	if v == "" {
		return ""
	}
	return strings.ToLower(strings.ToUpper(v))
}

// SplitName splits a free-form name into (first, last). First token is the
// first name and the last token is the last name; a single-word name uses
// that word for both, so matching never loses the ln field.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], parts[len(parts)-1]
}

// Normalize derives the canonical identity from raw input. Explicit
// first/last name fields win over the split of the combined name. The phone
// field is canonicalized with the strict Irish parser; numbers that fail the
// allow-list come out absent.
func Normalize(raw RawIdentity) NormalizedIdentity {
	first, last := SplitName(raw.Name)
	if strings.TrimSpace(raw.FirstName) != "" {
		first = raw.FirstName
	}
	if strings.TrimSpace(raw.LastName) != "" {
		last = raw.LastName
	}

	phone, _ := ParsePhone(raw.Phone)

	return NormalizedIdentity{
		FirstName:  NormalizeString(first),
		LastName:   NormalizeString(last),
		Email:      NormalizeString(raw.Email),
		Phone:      phone,
		Zip:        NormalizeZip(raw.Zip),
		City:       NormalizeString(raw.City),
		State:      NormalizeString(raw.State),
		Country:    NormalizeCountry(raw.Country),
		ExternalID: NormalizeString(raw.ExternalID),

		FBP:             strings.TrimSpace(raw.FBP),
		FBC:             strings.TrimSpace(raw.FBC),
		ClientIP:        strings.TrimSpace(raw.ClientIP),
		ClientUserAgent: strings.TrimSpace(raw.ClientUserAgent),
	}
}
