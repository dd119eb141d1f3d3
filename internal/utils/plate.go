package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate upper-cases a recognized plate and drops separators and
// OCR noise such as spaces, dashes and dots.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.TrimSpace(plate) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
