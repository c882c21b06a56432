package utils

import "strings"

// SanitizeString strips control characters from user-entered text.
func SanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// TruncateString shortens a string to maxLen runes, appending an ellipsis
// when truncation occurred.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// MaskSensitive hides all but the last visibleChars characters of a secret.
func MaskSensitive(s string, visibleChars int) string {
	if visibleChars <= 0 || len(s) <= visibleChars {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visibleChars) + s[len(s)-visibleChars:]
}
