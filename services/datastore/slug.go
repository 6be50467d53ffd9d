package datastore

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Slugify builds a URL-friendly slug from a display name: lowercase,
// non-alphanumerics collapsed to single dashes, plus a short random suffix
// so renames and duplicates never collide.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
