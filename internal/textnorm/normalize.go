// internal/textnorm/normalize.go
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a guess or a target word so comparisons ignore case
// and accents: the result is uppercase and holds only A-Z and 0-9.
func Normalize(s string) string {
	return fold(s, false)
}

// NormalizeWithSpaces is Normalize but keeps whitespace, collapsed to single
// spaces. It is used for display of multi-word terms.
func NormalizeWithSpaces(s string) string {
	return fold(s, true)
}

// Equal reports whether a and b are the same word after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// UniqueLetters returns the distinct characters of the normalized word in
// first-seen order.
func UniqueLetters(word string) []string {
	seen := make(map[rune]bool)
	var out []string
	for _, r := range Normalize(word) {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, string(r))
	}
	return out
}

// Slug turns a display name into an identifier: lowercase ASCII letters and
// digits, with every other run of characters collapsed to a single "-".
func Slug(s string) string {
	lower := cases.Lower(language.Und).String(stripMarks(s))
	var b strings.Builder
	dash := false
	for _, r := range lower {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func stripMarks(s string) string {
	// transformers keep state, so the chain is built per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return stripped
}

func fold(s string, keepSpaces bool) string {
	if s == "" {
		return ""
	}
	upper := cases.Upper(language.Und).String(stripMarks(s))

	var b strings.Builder
	b.Grow(len(upper))
	lastSpace := true
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case keepSpaces && unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
