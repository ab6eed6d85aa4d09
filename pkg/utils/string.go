package utils

import "strings"

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// OneLine collapses runs of whitespace, newlines included, into single
// spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
