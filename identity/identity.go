// Package identity canonicalises listing URLs and free text so that
// deduplication and keyword matching see one stable form regardless of how
// the marketplace rendered them.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	// accentFold maps the Spanish accented runes that show up in listing
	// text (titles, locations, field labels) onto their plain forms.
	accentFold = strings.NewReplacer(
		"á", "a", "à", "a", "ä", "a",
		"é", "e", "è", "e", "ë", "e",
		"í", "i", "ì", "i", "ï", "i",
		"ó", "o", "ò", "o", "ö", "o",
		"ú", "u", "ù", "u", "ü", "u",
		"ñ", "n",
	)
	multiSpaceRegex = regexp.MustCompile(`\s+`)
)

// CanonicalURL reduces a listing URL to its identity: lowercased host, no
// query string, no fragment, no trailing slash. Tracking parameters appended
// by search-result pages would otherwise make the same advertisement look
// like several.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// Normalize lowercases text, folds Spanish accents and collapses runs of
// whitespace. Keyword matching and commercial-seller detection both run on
// this form.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = accentFold.Replace(s)
	return multiSpaceRegex.ReplaceAllString(s, " ")
}

// Fingerprint returns a short stable hash of a canonical listing URL, used
// as the seen-URL key in the operational store.
func Fingerprint(rawURL string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(hash[:16])
}
