package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a title for comparison: combining marks are
// stripped after canonical decomposition, everything but ASCII letters,
// digits and whitespace is removed, the result is lower-cased and runs of
// whitespace collapse to a single space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transform.Chain keeps state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, text)
	if err != nil {
		decomposed = text
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
