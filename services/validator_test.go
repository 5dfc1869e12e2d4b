package services

import (
	"testing"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

func cb125rProfile() *config.ModelProfile {
	return &config.ModelProfile{
		Key:             "cb125r",
		Name:            "Honda CB125R",
		Brand:           "honda",
		PriceMin:        1000,
		PriceMax:        4500,
		YearMin:         2018,
		YearMax:         2025,
		Keywords:        []string{"cb125r", "cb 125 r"},
		ExcludeKeywords: []string{"cb125f", "cbf125"},
		CleanPriceFloor: 1000,
	}
}

func newTestValidator(t *testing.T, profile *config.ModelProfile) *Validator {
	t.Helper()
	m, err := NewMatcher(profile)
	if err != nil {
		t.Fatal(err)
	}
	return NewValidator(profile, m)
}

func candidate(title, price, mileage, year string) models.ListingCandidate {
	return models.ListingCandidate{
		URL:         "https://es.wallapop.com/item/moto-123",
		Title:       title,
		PriceText:   price,
		MileageText: mileage,
		YearText:    year,
	}
}

func TestValidateAccepted(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	c := candidate("Honda CB125R 2020", "3.500 €", "12.500 km", "2020")
	got, reason, weak := v.Validate(&c)
	if reason != models.RejectNone {
		t.Fatalf("rejected: %s", reason)
	}
	if weak {
		t.Error("direct keyword hit should not be weak")
	}
	if got.Price == nil || *got.Price != 3500 {
		t.Errorf("price = %v, want 3500", got.Price)
	}
	if got.Mileage == nil || *got.Mileage != 12500 {
		t.Errorf("mileage = %v, want 12500", got.Mileage)
	}
	if got.Year == nil || *got.Year != 2020 {
		t.Errorf("year = %v, want 2020", got.Year)
	}
}

func TestValidateRejections(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	tests := []struct {
		name   string
		c      models.ListingCandidate
		reason models.RejectReason
	}{
		{"no title", candidate(models.Unspecified, "3.500 €", "", ""), models.RejectNoTitle},
		{"wrong model", candidate("Honda CBF125 2020", "3.500 €", "", "2020"), models.RejectIdentity},
		{"price below range", candidate("Honda CB125R", "800 €", "", "2020"), models.RejectPrice},
		{"price above range", candidate("Honda CB125R", "5.900 €", "", "2020"), models.RejectPrice},
		{"year below range", candidate("Honda CB125R", "3.500 €", "", "2016"), models.RejectYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, _ := v.Validate(&tt.c)
			if reason != tt.reason {
				t.Errorf("reason = %s, want %s", reason, tt.reason)
			}
		})
	}
}

func TestValidateUnparseablePriceIsKept(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	c := candidate("Honda CB125R impecable", "a convenir", "", "2020")
	got, reason, _ := v.Validate(&c)
	if reason != models.RejectNone {
		t.Fatalf("unreadable price must not reject on price grounds: %s", reason)
	}
	if got.Price != nil {
		t.Errorf("price = %v, want nil", got.Price)
	}
}

func TestValidateBrandOnlyNeedsInRangePrice(t *testing.T) {
	profile := cb125rProfile()
	profile.AllowBrandlessMatch = true
	profile.BrandKeywords = []string{"honda"}
	v := newTestValidator(t, profile)

	c := candidate("Honda impecable poco uso", "3.200 €", "", "2020")
	got, reason, weak := v.Validate(&c)
	if reason != models.RejectNone || !weak {
		t.Fatalf("brand-only hit with in-range price should be accepted weak, got %s weak=%v", reason, weak)
	}
	if got.Price == nil || *got.Price != 3200 {
		t.Errorf("price = %v, want 3200", got.Price)
	}

	noPrice := candidate("Honda impecable poco uso", "a convenir", "", "2020")
	_, reason, weak = v.Validate(&noPrice)
	if reason != models.RejectPrice || !weak {
		t.Errorf("brand-only hit without a price should reject, got %s weak=%v", reason, weak)
	}
}

func TestValidateYearFromTitleFallback(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	c := candidate("Honda CB125R 2019 pocos km", "3.200 €", "8.000 km", models.Unspecified)
	got, reason, _ := v.Validate(&c)
	if reason != models.RejectNone {
		t.Fatalf("rejected: %s", reason)
	}
	if got.Year == nil || *got.Year != 2019 {
		t.Errorf("year = %v, want 2019 from title", got.Year)
	}
}

func TestValidateMissingYearIsKept(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	c := candidate("Honda CB125R impecable", "3.200 €", "", models.Unspecified)
	got, reason, _ := v.Validate(&c)
	if reason != models.RejectNone {
		t.Fatalf("missing year must not reject: %s", reason)
	}
	if got.Year != nil {
		t.Errorf("year = %v, want nil", got.Year)
	}
}

func TestValidateBatchStats(t *testing.T) {
	v := newTestValidator(t, cb125rProfile())

	batch := []models.ListingCandidate{
		candidate("Honda CB125R 2020", "3.500 €", "12.000 km", "2020"),
		candidate("Honda CBF125", "2.000 €", "", "2020"),
		candidate("Honda CB125R", "200 €", "", "2020"),
		candidate(models.Unspecified, "", "", ""),
	}

	valid, stats := v.ValidateBatch(batch)
	if len(valid) != 1 {
		t.Fatalf("valid = %d, want 1", len(valid))
	}
	if stats.Candidates != 4 || stats.Accepted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Identity != 1 || stats.PriceRange != 1 || stats.NoTitle != 1 {
		t.Errorf("per-reason stats wrong: %+v", stats)
	}
}
