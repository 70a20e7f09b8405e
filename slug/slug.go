// Package slug turns URLs and free text into file-name safe identifiers.
package slug

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug Generate returns
const MaxLength = 100

var (
	invalidChars = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRuns   = regexp.MustCompile("-+")
	separators   = strings.NewReplacer(" ", "-", "_", "-", ".", "-", "/", "-")
)

// Generate creates a URL-friendly slug from a string.
// Characters without an ASCII base form are dropped.
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = transliterate(strings.ToLower(s))
	s = separators.Replace(s)
	s = invalidChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// GenerateWithFallback generates a slug, falling back to a default if the input produces an empty slug
func GenerateWithFallback(s, fallback string) string {
	if slug := Generate(s); slug != "" {
		return slug
	}
	return Generate(fallback)
}

// transliterate strips diacritics: NFD, drop nonspacing marks, NFC
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// MakeUnique appends a counter to a slug; counter 0 returns the slug unchanged
func MakeUnique(slug string, counter int) string {
	if counter <= 0 {
		return slug
	}
	return slug + "-" + strconv.Itoa(counter)
}

// FromURL builds a slug from the host and path of a page URL.
// The file extension of the last path segment and the query are ignored.
func FromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Generate(raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		path = path[:idx]
	}
	return Generate(host + " " + path)
}
