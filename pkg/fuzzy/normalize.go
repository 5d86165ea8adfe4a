package fuzzy

import (
	"strings"
	"unicode"
)

// honorifics are stripped as trailing suffixes before comparison, in both
// "-san" and " san" forms.
var honorifics = []string{"san", "kun", "chan", "sama"}

// Normalize prepares a name for comparison: lowercase, trimmed, honorific
// suffix stripped, punctuation removed, whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, h := range honorifics {
		if trimmed, ok := strings.CutSuffix(s, "-"+h); ok {
			s = trimmed
			break
		}
		if trimmed, ok := strings.CutSuffix(s, " "+h); ok {
			s = trimmed
			break
		}
	}

	// Replace punctuation with spaces rather than deleting it, so
	// "yagami,light" splits into two tokens instead of gluing together.
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(mapped), " ")
}
