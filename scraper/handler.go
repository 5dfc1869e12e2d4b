package scraper

import (
	"context"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

// Handler collects raw listing candidates for one vehicle model. Extraction
// is best effort: missing fields come back as models.Unspecified and a
// failed detail page is skipped, never fatal.
type Handler interface {
	Key() string
	Scrape(ctx context.Context, profile *config.ModelProfile) ([]models.ListingCandidate, error)
}

func NewHandler(cfg *config.Config, profile *config.ModelProfile) Handler {
	return NewBrowserHandler(cfg, profile)
}
