// Package textclean turns untrusted extracted text into text that is safe to
// persist: valid UTF-8, whitespace-normalised and bounded in length.
package textclean

import (
	"strings"
	"unicode/utf8"
)

// Placeholder replaces every byte sequence that is not valid UTF-8.
const Placeholder = '\uFFFD'

// Sanitize returns s with every invalid UTF-8 sequence replaced by
// Placeholder. A UTF-8 encoded surrogate code point (U+D800..U+DFFF, which
// some PDF producers emit for unpaired UTF-16 halves) counts as a single
// sequence and yields a single placeholder. Sanitize is idempotent.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != utf8.RuneError || size > 1 {
			b.WriteString(s[i : i+size])
			i += size
			continue
		}

		b.WriteRune(Placeholder)
		if n := surrogateLen(s[i:]); n > 0 {
			i += n
		} else {
			i++
		}
	}

	return b.String()
}

// surrogateLen reports the length of an encoded surrogate at the start of s,
// or 0 when s does not start with one.
func surrogateLen(s string) int {
	if len(s) < 3 || s[0] != 0xED {
		return 0
	}
	if s[1] < 0xA0 || s[1] > 0xBF || s[2]&0xC0 != 0x80 {
		return 0
	}
	return 3
}

// CollapseSpace joins all whitespace-separated fields of s with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes. A non-positive max disables the cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Clean is the single entry point for extracted text: it sanitizes, collapses
// whitespace and truncates to maxChars runes. A space left at the cut is
// dropped, so Clean(Clean(s)) == Clean(s).
func Clean(s string, maxChars int) string {
	return strings.TrimRight(Truncate(CollapseSpace(Sanitize(s)), maxChars), " ")
}
