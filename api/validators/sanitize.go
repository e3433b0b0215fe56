package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText trims free-text input such as cancel reasons, drops control
// characters other than newlines and tabs, and keeps at most maxRunes runes.
// A non-positive maxRunes disables the limit.
func CleanText(input string, maxRunes int) string {
	trimmed := strings.TrimSpace(strings.ToValidUTF8(input, ""))
	cleaned := strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, trimmed)
	if maxRunes <= 0 || utf8.RuneCountInString(cleaned) <= maxRunes {
		return cleaned
	}
	count := 0
	for i := range cleaned {
		if count == maxRunes {
			return strings.TrimRightFunc(cleaned[:i], unicode.IsSpace)
		}
		count++
	}
	return cleaned
}
