// Package parse converts locale-formatted numeric substrings found in
// marketplace listing text into typed values. Spanish listings mix "3.500 €",
// "19,90 €" and "12.500,90€" freely, so the separators are disambiguated by
// shape rather than assumed. All functions are total: unparseable input
// yields the zero value, never an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	amountCleanRe = regexp.MustCompile(`[^0-9,.]`)
	digitRunRe    = regexp.MustCompile(`\d+`)
	yearTokenRe   = regexp.MustCompile(`(19|20)\d{2}`)
)

// Price extracts a numeric price from display text such as "3.500 €" or
// "12.500,90€". Returns 0 when no amount can be found. Plausibility bounds
// are the caller's concern.
func Price(text string) float64 {
	return amount(text)
}

// Mileage extracts a numeric odometer reading from text such as "15.000 km".
// Returns 0 when no amount can be found.
func Mileage(text string) float64 {
	return amount(text)
}

// amount implements the shared price/mileage algorithm: strip everything but
// digits and separators, then decide whether "." and "," are thousands or
// decimal separators from the length of the trailing group.
func amount(text string) float64 {
	clean := amountCleanRe.ReplaceAllString(strings.TrimSpace(text), "")
	if clean == "" {
		return 0
	}

	hasDot := strings.Contains(clean, ".")
	hasComma := strings.Contains(clean, ",")

	switch {
	case hasDot && hasComma:
		// Spanish format "12.500,90" only when the comma group looks decimal.
		parts := strings.Split(clean, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			whole := strings.ReplaceAll(parts[0], ".", "")
			if v, err := strconv.ParseFloat(whole+"."+parts[1], 64); err == nil {
				return v
			}
		}
		joined := strings.NewReplacer(".", "", ",", "").Replace(clean)
		if v, err := strconv.ParseFloat(joined, 64); err == nil {
			return v
		}

	case hasComma:
		parts := strings.Split(clean, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			if v, err := strconv.ParseFloat(parts[0]+"."+parts[1], 64); err == nil {
				return v
			}
		}
		if v, err := strconv.ParseFloat(strings.ReplaceAll(clean, ",", ""), 64); err == nil {
			return v
		}

	case hasDot:
		parts := strings.Split(clean, ".")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			if v, err := strconv.ParseFloat(clean, 64); err == nil {
				return v
			}
		}
		if v, err := strconv.ParseFloat(strings.ReplaceAll(clean, ".", ""), 64); err == nil {
			return v
		}

	default:
		if v, err := strconv.ParseFloat(clean, 64); err == nil {
			return v
		}
	}

	// Last resort: first maximal digit run.
	if run := digitRunRe.FindString(clean); run != "" {
		if v, err := strconv.ParseFloat(run, 64); err == nil {
			return v
		}
	}
	return 0
}

// yearExclusions are words that, when they immediately precede a four-digit
// year, mark it as an inspection/insurance/warranty date rather than the
// manufacture year ("ITV hasta 2026"). The list is a heuristic and known to
// be incomplete; see the tests for the documented failure modes.
var yearExclusions = []string{
	"itv",
	"revision",
	"revisión",
	"seguro",
	"garantia",
	"garantía",
	"hasta",
	"valida",
	"válida",
	"vence",
	"caduca",
	"transferencia",
}

// Year finds the first plausible four-digit manufacture year in text.
// A token is accepted when it lies in [1990, current year+1] and its
// immediate left context does not name an inspection or expiry date.
// The boolean is false when no acceptable year was found.
func Year(text string) (int, bool) {
	lower := strings.ToLower(text)
	maxYear := time.Now().Year() + 1

	for _, loc := range yearTokenRe.FindAllStringIndex(lower, -1) {
		year, err := strconv.Atoi(lower[loc[0]:loc[1]])
		if err != nil || year < 1990 || year > maxYear {
			continue
		}
		if excludedYearContext(lower, loc[0]) {
			continue
		}
		return year, true
	}
	return 0, false
}

// excludedYearContext checks the ~24 characters before a year token for an
// exclusion word, so "itv pasada hasta 2026" rejects 2026 but "Z900 2021
// con itv" still accepts 2021.
func excludedYearContext(lower string, start int) bool {
	from := start - 24
	if from < 0 {
		from = 0
	}
	window := lower[from:start]
	for _, word := range yearExclusions {
		if strings.Contains(window, word) {
			return true
		}
	}
	return false
}
