package intent

import "strings"

// Normalize canonicalises an utterance for matching: lowercase, punctuation
// stripped (decimal points inside numbers survive), whitespace collapsed.
// All cascade layers and the learned cache key off the normalized form so
// that "Add lunch, $12.50!" and "add lunch 12.50" resolve identically.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == '.' && betweenDigits(s, i):
			b.WriteRune(r)
			lastSpace = false
		case r == '\'':
			// "what's" -> "whats"
		case r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.' ||
			r == '?' || r == '!' || r == ';' || r == ':' || r == '$' ||
			r == '"' || r == '-':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Non-ASCII letters pass through untouched.
			if r > 127 {
				b.WriteRune(r)
				lastSpace = false
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// betweenDigits reports whether the byte at i sits between two ASCII digits.
func betweenDigits(s string, i int) bool {
	if i == 0 || i+1 >= len(s) {
		return false
	}
	return s[i-1] >= '0' && s[i-1] <= '9' && s[i+1] >= '0' && s[i+1] <= '9'
}
