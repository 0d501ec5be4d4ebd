package messaging

import "strings"

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9] into a single '-', trimming dashes at either end.
// "Open Houses & Tours" becomes "open-houses-tours".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
