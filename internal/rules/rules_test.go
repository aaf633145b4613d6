package rules

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCaption(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "trims whitespace", in: "  hello campus  ", want: "hello campus"},
		{name: "keeps short caption", in: "first day!", want: "first day!"},
		{name: "trims before truncating", in: "  " + strings.Repeat("a", 300), want: strings.Repeat("a", 250)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeCaption(tt.in))
		})
	}
}

func TestNormalizeCaptionTruncatesToMax(t *testing.T) {
	long := strings.Repeat("x", MaxCaptionLength+100)
	got := NormalizeCaption(long)
	require.Len(t, got, MaxCaptionLength)
	require.Equal(t, strings.TrimSpace(long)[:MaxCaptionLength], got)
}

func TestNormalizeCaptionCountsCharactersNotBytes(t *testing.T) {
	// 130 characters, 260 bytes: within the limit, must pass untouched.
	accented := strings.Repeat("é", 130)
	require.Equal(t, accented, NormalizeCaption(accented))

	// Over-length multibyte input is cut on a character boundary.
	long := strings.Repeat("中", MaxCaptionLength+50)
	got := NormalizeCaption(long)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, MaxCaptionLength, utf8.RuneCountInString(got))
	require.Equal(t, strings.Repeat("中", MaxCaptionLength), got)
}

func TestValidateCreate(t *testing.T) {
	require.True(t, ValidateCreate("pub1", "https://cdn/x.jpg").OK)

	missing := ValidateCreate("", "")
	require.False(t, missing.OK)
	require.Contains(t, missing.Error, "media_public_id")

	require.False(t, ValidateCreate("pub1", "").OK)
	require.False(t, ValidateCreate("", "https://cdn/x.jpg").OK)
}

func TestCanModify(t *testing.T) {
	// Admins pass regardless of ids, even absent ones.
	require.True(t, CanModify("", "", "admin"))
	require.True(t, CanModify("1", "2", "admin"))

	// Non-admins need matching, present ids.
	require.True(t, CanModify("7", "7", "user"))
	require.False(t, CanModify("7", "8", "user"))
	require.False(t, CanModify("", "7", "user"))
	require.False(t, CanModify("7", "", "user"))
	require.False(t, CanModify("", "", ""))
}

func TestCoerceIDList(t *testing.T) {
	require.Equal(t, []int{1, 2, 3}, CoerceIDList([]string{"1", "2", "3"}))
	require.Equal(t, []int{4, 6}, CoerceIDList([]string{"4", "legacy-uuid", "6", ""}))
	require.Equal(t, []int{9}, CoerceIDList([]string{" 9 "}))
	require.Empty(t, CoerceIDList(nil))
	require.Empty(t, CoerceIDList([]string{"abc", "1.5"}))
}
