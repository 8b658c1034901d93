package utils

import "unicode/utf8"

const ellipsis = "..."

// Truncate keeps the head of s so the result is at most maxLen runes.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= len(ellipsis) {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-len(ellipsis)]) + ellipsis
}

// TruncateLeft keeps the tail of s, the informative end of paths and
// artifact locations.
func TruncateLeft(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= len(ellipsis) {
		return string(r[len(r)-max(maxLen, 0):])
	}
	return ellipsis + string(r[len(r)-(maxLen-len(ellipsis)):])
}
