package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// URLHashLen is the number of hex characters kept from a URL digest.
const URLHashLen = 16

// Resolve resolves href against base and returns an absolute HTTP(S) URL.
func Resolve(base *url.URL, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if !isSupportedScheme(parsed.Scheme) {
		return "", false
	}

	resolved := resolveReference(base, parsed)
	if !isSupportedScheme(resolved.Scheme) || resolved.Host == "" {
		return "", false
	}

	resolved.Fragment = ""

	return resolved.String(), true
}

func isSupportedScheme(scheme string) bool {
	return scheme == "" || scheme == "http" || scheme == "https"
}

func resolveReference(base *url.URL, parsed *url.URL) *url.URL {
	if parsed.Scheme == "" {
		if base == nil {
			return parsed
		}
		return base.ResolveReference(parsed)
	}

	return parsed
}

// Hash returns the first URLHashLen hex characters of the SHA-256 of rawURL.
// Storage filenames are derived from it.
func Hash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))

	return hex.EncodeToString(sum[:])[:URLHashLen]
}

// WithPage appends param=page to base, using '&' when base already has a query.
// The base string is not re-encoded so configured URLs round-trip unchanged.
func WithPage(base string, param string, page int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	return base + sep + param + "=" + strconv.Itoa(page)
}
