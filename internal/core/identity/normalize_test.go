package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims and lowers", input: "  John Murphy  ", want: "john murphy"},
		{name: "collapses whitespace", input: "john\t\n  murphy", want: "john murphy"},
		{name: "strips accents", input: "Máire Ní Bhriain", want: "maire ni bhriain"},
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeString(tc.input))
		})
	}
}

func TestNormalizeZip(t *testing.T) {
	require.Equal(t, "d02x285", NormalizeZip(" D02 X285 "))
	require.Equal(t, "a65f4e2", NormalizeZip("a65 f4e2"))
	require.Equal(t, "", NormalizeZip("  "))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFirst string
		wantLast  string
	}{
		{name: "two words", input: "John Murphy", wantFirst: "John", wantLast: "Murphy"},
		{name: "middle names take last token", input: "Máire Ní Bhriain", wantFirst: "Máire", wantLast: "Bhriain"},
		{name: "single word doubles as last", input: "Madonna", wantFirst: "Madonna", wantLast: "Madonna"},
		{name: "empty", input: "  ", wantFirst: "", wantLast: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first, last := SplitName(tc.input)
			require.Equal(t, tc.wantFirst, first)
			require.Equal(t, tc.wantLast, last)
		})
	}
}

func TestNormalize_EndToEnd(t *testing.T) {
	got := Normalize(RawIdentity{
		Name:    "Máire Ní Bhriain",
		Email:   " M@Test.IE ",
		Phone:   "0851234567",
		Zip:     "D02 X285",
		City:    " Dublin ",
		Country: "IE",
		FBP:     " fb.1.1700000000.123 ",
	})

	require.Equal(t, "maire", got.FirstName)
	require.Equal(t, "bhriain", got.LastName)
	require.Equal(t, "m@test.ie", got.Email)
	require.Equal(t, "353851234567", got.Phone)
	require.Equal(t, "d02x285", got.Zip)
	require.Equal(t, "dublin", got.City)
	require.Equal(t, "ie", got.Country)
	require.Equal(t, "fb.1.1700000000.123", got.FBP)
}

func TestNormalize_ExplicitNamesWin(t *testing.T) {
	got := Normalize(RawIdentity{
		Name:      "Something Else",
		FirstName: "Aoife",
		LastName:  "Ó Sé",
	})
	require.Equal(t, "aoife", got.FirstName)
	require.Equal(t, "o se", got.LastName)
}

func TestNormalize_SingleWordNameFillsBothFields(t *testing.T) {
	got := Normalize(RawIdentity{Name: "Madonna"})
	require.Equal(t, "madonna", got.FirstName)
	require.Equal(t, "madonna", got.LastName)
}

func TestNormalize_UnparsablePhoneIsAbsent(t *testing.T) {
	got := Normalize(RawIdentity{Phone: "12345"})
	require.Empty(t, got.Phone)
}
