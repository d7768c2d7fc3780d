package util

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. This is used when logging sensitive data like tokens, where
// only a prefix should be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
