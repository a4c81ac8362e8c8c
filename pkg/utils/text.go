package utils

import "unicode/utf8"

// Truncate cuts s to at most limit runes and marks the cut with "...".
// Strings that fit are returned unchanged.
func Truncate(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
