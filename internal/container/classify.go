package container

import (
	"strings"
	"unicode"
)

// IsTranslatable reports whether s is worth sending to a translation engine.
// Blank strings, numbers (including separators, signs and percent) and
// strings made only of punctuation or symbols are skipped.
func IsTranslatable(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	for _, r := range t {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
