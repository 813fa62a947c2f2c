package textnorm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_KeepsValidText(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "Grüße aus Köln", Normalize("Grüße aus Köln"))
	assert.Equal(t, "日本語のテキスト", Normalize("日本語のテキスト"))
}

func TestNormalize_StripsAstralAndNUL(t *testing.T) {
	got := Normalize("ok 😀 done\x00 𝔘nicode")
	assert.Equal(t, "ok  done nicode", got)
	for _, r := range got {
		assert.LessOrEqual(t, r, rune(0xFFFF))
	}
}

func TestNormalize_ComposesNFC(t *testing.T) {
	assert.Equal(t, "\u00e9", Normalize("e\u0301"))
	// a stripped rune between base and mark must not leave a decomposed pair
	assert.Equal(t, "\u00e9", Normalize("e\x00\u0301"))
}

func TestNormalize_RepairsInvalidBytes(t *testing.T) {
	latin1 := "Caf\xe9 cr\xe8me br\xfbl\xe9e, na\xefve r\xe9sum\xe9 of the d\xe9j\xe0 vu"
	got := Normalize(latin1)
	require.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(got, "Caf"))
	assert.Contains(t, got, " vu")

	junk := Normalize("\xff\xfe\xfd")
	assert.True(t, utf8.ValidString(junk))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain ascii",
		"é and ä",
		"mixed 😀 astral \x00 nul",
		"Caf\xe9 au lait \xff",
		"e\x00\u0301",
		"\u212b angstrom sign",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "äö", Truncate("äöü", 2))
	assert.Equal(t, 500, utf8.RuneCountInString(Truncate(strings.Repeat("ß", 600), 500)))
}
