package services

import (
	"fmt"
	"regexp"
	"strings"

	"moto_scrooper/config"
	"moto_scrooper/identity"
)

// Matcher decides whether a listing title refers to a configured vehicle
// model. Keywords tolerate spacing and separator variants ("cb125r",
// "cb 125 r", "cb-125-r" all hit); exclusion keywords veto sibling models
// before any inclusion keyword is consulted.
type Matcher struct {
	profile *config.ModelProfile
	include []*regexp.Regexp
	exclude []*regexp.Regexp
	brand   []*regexp.Regexp
}

func NewMatcher(profile *config.ModelProfile) (*Matcher, error) {
	m := &Matcher{profile: profile}

	var err error
	if m.include, err = compileKeywords(profile.Keywords); err != nil {
		return nil, fmt.Errorf("model %s: %w", profile.Key, err)
	}
	if m.exclude, err = compileKeywords(profile.ExcludeKeywords); err != nil {
		return nil, fmt.Errorf("model %s: %w", profile.Key, err)
	}
	brandKeywords := profile.BrandKeywords
	if len(brandKeywords) == 0 && profile.Brand != "" {
		brandKeywords = []string{profile.Brand}
	}
	if m.brand, err = compileKeywords(brandKeywords); err != nil {
		return nil, fmt.Errorf("model %s: %w", profile.Key, err)
	}

	return m, nil
}

// compileKeywords turns each keyword into a pattern whose alphanumeric runs
// may be joined by any mix of spaces, hyphens, dots or slashes, anchored so
// that "z900" does not match inside "z900rs".
func compileKeywords(keywords []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		norm := identity.Normalize(kw)
		if norm == "" {
			continue
		}

		parts := tokenRe.FindAllString(norm, -1)
		if len(parts) == 0 {
			continue
		}
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}

		pattern := `(^|[^a-z0-9])` + strings.Join(parts, `[\s\-\./]*`) + `($|[^a-z0-9])`
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", kw, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Matches reports whether the title identifies this model. Exclusions are
// checked first and always win.
func (m *Matcher) Matches(title string) bool {
	norm := identity.Normalize(title)
	if norm == "" {
		return false
	}

	for _, re := range m.exclude {
		if re.MatchString(norm) {
			return false
		}
	}

	for _, re := range m.include {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

// MatchesWeak reports a brand-only hit for opted-in profiles: the title
// names the brand but no model keyword fired. Callers accept these only
// with the rest of validation passing, and log every acceptance.
func (m *Matcher) MatchesWeak(title string) bool {
	if !m.profile.AllowBrandlessMatch {
		return false
	}

	norm := identity.Normalize(title)
	if norm == "" {
		return false
	}

	for _, re := range m.exclude {
		if re.MatchString(norm) {
			return false
		}
	}
	for _, re := range m.brand {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}
