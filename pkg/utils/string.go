package utils

// Truncate shortens s to at most maxLen bytes, appending "..." when it cut
// anything. It never splits a multi-byte character.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := 0
	for i := range s {
		if i > maxLen {
			break
		}
		cut = i
	}

	return s[:cut] + "..."
}
