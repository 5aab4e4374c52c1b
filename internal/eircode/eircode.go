// Package eircode validates and normalizes Irish postcodes and optionally
// resolves them to an address through an external lookup provider.
package eircode

import (
	"fmt"
	"regexp"
	"strings"
)

// Routing keys use a restricted alphabet that avoids ambiguous letters.
// D6W is the single non-numeric routing key in the plan.
var eircodePattern = regexp.MustCompile(`^(?:[AC-FHKNPRTV-Y]\d{2}|D6W)[0-9AC-FHKNPRTV-Y]{4}$`)

// Normalize upper-cases and strips whitespace: "d6w xy00" -> "D6WXY00".
func Normalize(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// Valid reports whether the input is a well-formed eircode after
// normalization.
func Valid(raw string) bool {
	return eircodePattern.MatchString(Normalize(raw))
}

// Format renders the canonical display form with the space between routing
// key and unique identifier: "D6WXY00" -> "D6W XY00".
func Format(raw string) (string, error) {
	n := Normalize(raw)
	if !eircodePattern.MatchString(n) {
		return "", fmt.Errorf("invalid eircode %q", raw)
	}
	return n[:3] + " " + n[3:], nil
}

// RoutingKey returns the area prefix of a valid eircode.
func RoutingKey(raw string) (string, error) {
	n := Normalize(raw)
	if !eircodePattern.MatchString(n) {
		return "", fmt.Errorf("invalid eircode %q", raw)
	}
	return n[:3], nil
}
