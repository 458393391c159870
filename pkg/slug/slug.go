// Package slug derives filesystem-safe cache keys from track titles.
package slug

import "strings"

// Untitled is the key used for titles that contain no usable characters.
const Untitled = "untitled"

// Make lowercases title, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims hyphens from both ends. Make is idempotent:
// Make(Make(t)) == Make(t).
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pending := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	if b.Len() == 0 {
		return Untitled
	}

	return b.String()
}
