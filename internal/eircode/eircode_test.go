package eircode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "D6WXY00", Normalize("d6w xy00"))
	require.Equal(t, "A65F4E2", Normalize("  a65 f4e2 "))
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"standard routing key", "A65 F4E2", true},
		{"dublin 6w", "D6W XY00", true},
		{"lowercase with spaces", "t12 aw34", true},
		{"ambiguous letter B in key", "B65 F4E2", false},
		{"too short", "A65 F4E", false},
		{"too long", "A65 F4E22", false},
		{"letter O in identifier", "A65 F4OO", false},
		{"empty", "", false},
		{"plain text", "DUBLIN", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Valid(tt.in))
		})
	}
}

func TestFormat(t *testing.T) {
	got, err := Format("d6wxy00")
	require.NoError(t, err)
	require.Equal(t, "D6W XY00", got)

	_, err = Format("nope")
	require.Error(t, err)
}

func TestRoutingKey(t *testing.T) {
	got, err := RoutingKey("A65 F4E2")
	require.NoError(t, err)
	require.Equal(t, "A65", got)
}
