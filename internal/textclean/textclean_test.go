package textclean

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loneHigh is U+D800 encoded as if it were a scalar value (WTF-8 / CESU style).
const loneHigh = "\xed\xa0\x80"

// loneLow is U+DC00 encoded the same way.
const loneLow = "\xed\xb0\x80"

func TestSanitize_ValidTextUnchanged(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "alpha beta", "Привет, мир", "emoji \U0001F600", "already \uFFFD here"} {
		assert.Equal(t, s, Sanitize(s))
	}
}

func TestSanitize_LoneSurrogates(t *testing.T) {
	t.Parallel()

	got := Sanitize("a" + loneHigh + "b" + loneLow + "c")

	require.True(t, utf8.ValidString(got))
	assert.Equal(t, "a\uFFFDb\uFFFDc", got)
}

func TestSanitize_SurrogatePairEncodedSeparately(t *testing.T) {
	t.Parallel()

	// A high+low pair encoded as two 3-byte sequences is still two
	// placeholders: each half is replaced on its own.
	got := Sanitize(loneHigh + loneLow)

	assert.Equal(t, "\uFFFD\uFFFD", got)
}

func TestSanitize_StrayBytes(t *testing.T) {
	t.Parallel()

	got := Sanitize("x\xffy\xc3")

	require.True(t, utf8.ValidString(got))
	assert.Equal(t, "x\uFFFDy\uFFFD", got)
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		loneHigh,
		"head" + loneLow + "tail",
		"\xff\xfe\xfd",
		"mixed Ж " + loneHigh + " \x80 end",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.True(t, utf8.ValidString(once), "input %q", in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", CollapseSpace("  a\t\tb\n\n c  "))
	assert.Empty(t, CollapseSpace(" \n\t "))
}

func TestTruncate_CountsRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Жжж", Truncate("Жжжжж", 3))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestClean(t *testing.T) {
	t.Parallel()

	raw := "  Title\n\n" + loneHigh + "  body   text " + strings.Repeat("x", 50)
	got := Clean(raw, 20)

	assert.Equal(t, 20, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(got, "Title \uFFFD body text"))
	assert.Equal(t, got, Clean(got, 20))
}

func TestClean_CutAtSpace(t *testing.T) {
	t.Parallel()

	got := Clean("alpha beta gamma", 6)

	assert.Equal(t, "alpha", got)
	assert.Equal(t, got, Clean(got, 6))
}
