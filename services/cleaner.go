package services

import (
	"regexp"
	"strings"

	"moto_scrooper/config"
	"moto_scrooper/identity"
	"moto_scrooper/models"
)

// Cleaner drops validated listings that are structurally fine but not worth
// publishing: duplicates, suspiciously cheap records, dealer stock, island
// locations and worn-out vehicles. Each filter is independent; removal is
// attributed to the first filter that fires so per-filter counts sum to the
// total removed. Running Clean on its own output removes nothing.
type Cleaner struct {
	cfg config.CleaningConfig
}

func NewCleaner(cfg config.CleaningConfig) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// Clean filters one model's batch. The profile supplies the model-specific
// price floor; everything else comes from the global cleaning config.
func (c *Cleaner) Clean(profile *config.ModelProfile, in []models.ValidatedListing) ([]models.ValidatedListing, models.CleanStats) {
	stats := models.CleanStats{Initial: len(in)}
	out := make([]models.ValidatedListing, 0, len(in))
	seen := make(map[string]bool, len(in))

	floor := profile.CleanPriceFloor
	if floor < c.cfg.GlobalPriceMin {
		floor = c.cfg.GlobalPriceMin
	}

	for i := range in {
		l := &in[i]

		if c.cfg.DropDuplicates {
			key := identity.CanonicalURL(l.URL)
			if key != "" && seen[key] {
				stats.Duplicates++
				continue
			}
			if key != "" {
				seen[key] = true
			}
		}

		if l.Price != nil && *l.Price < floor {
			stats.PriceFloor++
			continue
		}

		if c.cfg.DropCommercial && c.isCommercial(l) {
			stats.Commercial++
			continue
		}

		if c.cfg.DropIslands && c.isExcludedRegion(l.LocationText) {
			stats.Island++
			continue
		}

		if l.Mileage != nil && c.cfg.GlobalMileageMax > 0 && *l.Mileage > c.cfg.GlobalMileageMax {
			stats.Mileage++
			continue
		}

		out = append(out, *l)
	}

	stats.Final = len(out)
	return out, stats
}

// commercialSellerRes flag legal-entity suffixes with or without dots,
// business phone numbers and email addresses in seller names. The substring
// keyword list cannot express these shapes.
var commercialSellerRes = []*regexp.Regexp{
	regexp.MustCompile(`\bs\.?l\.?\b`),
	regexp.MustCompile(`\bs\.?a\.?\b`),
	regexp.MustCompile(`\bltd\.?\b`),
	regexp.MustCompile(`\d{2,3}[\s\-]*\d{3}[\s\-]*\d{3}`),
	regexp.MustCompile(`@`),
}

// isCommercial checks the seller name and, as a fallback, the title for
// dealer vocabulary. Matching is on normalized text so accents and case do
// not matter.
func (c *Cleaner) isCommercial(l *models.ValidatedListing) bool {
	seller := identity.Normalize(l.SellerText)
	if seller != "" && seller != models.Unspecified {
		for _, kw := range c.cfg.CommercialKeywords {
			if strings.Contains(seller, identity.Normalize(kw)) {
				return true
			}
		}
		for _, re := range commercialSellerRes {
			if re.MatchString(seller) {
				return true
			}
		}
	}

	title := identity.Normalize(l.Title)
	for _, kw := range c.cfg.CommercialKeywords {
		norm := identity.Normalize(kw)
		// Short legal suffixes ("s.l.") are too noisy to search in titles.
		if len(norm) >= 5 && strings.Contains(title, norm) {
			return true
		}
	}
	return false
}

func (c *Cleaner) isExcludedRegion(location string) bool {
	norm := identity.Normalize(location)
	if norm == "" || norm == models.Unspecified {
		return false
	}
	for _, region := range c.cfg.ExcludedRegions {
		if strings.Contains(norm, identity.Normalize(region)) {
			return true
		}
	}
	return false
}
