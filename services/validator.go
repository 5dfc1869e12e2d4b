package services

import (
	"log"

	"moto_scrooper/config"
	"moto_scrooper/models"
	"moto_scrooper/parse"
)

// Validator turns raw extracted candidates into validated listings for one
// model profile. Rejection is per listing and never aborts a batch.
type Validator struct {
	profile *config.ModelProfile
	matcher *Matcher
}

func NewValidator(profile *config.ModelProfile, matcher *Matcher) *Validator {
	return &Validator{profile: profile, matcher: matcher}
}

// Validate applies the acceptance sequence to a single candidate: title
// presence, model identity, then parsed price and year against the profile
// bounds. The range checks only fire on values that actually parsed; a
// candidate with no readable price or year is kept with the field nil.
// Mileage is parsed but never rejected here. weak reports a brand-only
// identity hit, accepted only for profiles that opt in and only with an
// in-range price.
func (v *Validator) Validate(c *models.ListingCandidate) (listing *models.ValidatedListing, reason models.RejectReason, weak bool) {
	if !c.HasTitle() {
		return nil, models.RejectNoTitle, false
	}

	if !v.matcher.Matches(c.Title) {
		if !v.matcher.MatchesWeak(c.Title) {
			return nil, models.RejectIdentity, false
		}
		weak = true
	}

	out := &models.ValidatedListing{ListingCandidate: *c}

	if p := parse.Price(c.PriceText); p > 0 {
		out.Price = &p
	}
	if out.Price != nil && (*out.Price < v.profile.PriceMin || *out.Price > v.profile.PriceMax) {
		return nil, models.RejectPrice, weak
	}
	// A brand-only hit has no model keyword behind it; an in-range price is
	// the corroborating signal, so without one the candidate goes.
	if weak && out.Price == nil {
		return nil, models.RejectPrice, weak
	}

	if y, ok := parse.Year(c.YearText); ok {
		out.Year = &y
	} else if y, ok := parse.Year(c.Title); ok {
		// The title often carries the year when the detail field does not.
		out.Year = &y
	}
	if out.Year != nil && (*out.Year < v.profile.YearMin || *out.Year > v.profile.YearMax) {
		return nil, models.RejectYear, weak
	}

	if m := parse.Mileage(c.MileageText); m > 0 {
		out.Mileage = &m
	}

	if weak {
		log.Printf("[%s] brand-only match accepted: %q", v.profile.Key, c.Title)
	}
	return out, models.RejectNone, weak
}

// ValidateBatch runs Validate over a slice and aggregates per-reason stats.
func (v *Validator) ValidateBatch(candidates []models.ListingCandidate) ([]models.ValidatedListing, models.ValidationStats) {
	stats := models.ValidationStats{Candidates: len(candidates)}
	valid := make([]models.ValidatedListing, 0, len(candidates))

	for i := range candidates {
		listing, reason, weak := v.Validate(&candidates[i])
		if weak && reason == models.RejectNone {
			stats.WeakAccept++
		}
		switch reason {
		case models.RejectNone:
			valid = append(valid, *listing)
		case models.RejectNoTitle:
			stats.NoTitle++
		case models.RejectIdentity:
			stats.Identity++
		case models.RejectPrice:
			stats.PriceRange++
		case models.RejectYear:
			stats.YearRange++
		}
	}

	stats.Accepted = len(valid)
	return valid, stats
}
