package ledger

import (
	"strings"
	"unicode"
)

// Identity normalizes a track display name into the key stored in a ledger.
//
// Letters, numbers, underscores and whitespace are kept and every other rune is dropped,
// combining marks included. Case is preserved. Line breaks become spaces so an identity always fits
// on one ledger line.
func Identity(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case isLineBreak(r):
			b.WriteRune(' ')
		case r == '_', unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
