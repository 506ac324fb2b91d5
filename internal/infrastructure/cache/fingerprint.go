package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the cache key for a source URL as sha256 over its
// canonical form, rendered as 64 lowercase hex characters. Canonicalization
// strips any fragment and trims surrounding whitespace, so
// "https://a/b#reviews" and "https://a/b" address the same entry.
func Fingerprint(sourceURL string) string {
	canonical := sourceURL
	if i := strings.IndexByte(canonical, '#'); i >= 0 {
		canonical = canonical[:i]
	}
	canonical = strings.TrimSpace(canonical)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// FingerprintContent derives the cache key for a request that carries
// inline markup and no source URL. The text is hashed as-is; URL
// canonicalization does not apply to markup, where '#' is ordinary content.
func FingerprintContent(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}
