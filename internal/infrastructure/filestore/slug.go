package filestore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives an artifact filename stem from a recipe title. The result
// is lowercase ASCII matching [a-z0-9._-]+ with no leading or trailing dots
// or dashes; accented characters are transliterated by stripping their
// combining marks, anything else collapses to a single dash. Titles that
// reduce to nothing become "recipe" so an artifact always has a name.
func Slugify(title string) string {
	// The transformer chain is stateful, so build it per call.
	decompose := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(decompose, title)
	if err != nil {
		decomposed = title
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	pendingDash := false
	for _, r := range strings.ToLower(decomposed) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}

	slug := strings.Trim(b.String(), ".-")
	if slug == "" {
		return "recipe"
	}
	return slug
}
