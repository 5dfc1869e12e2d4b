package models

import "time"

// Unspecified is the canonical placeholder for a field the extractor could
// not find. It flows through parsing (-> 0/nil) instead of aborting a record.
const Unspecified = "unspecified"

// ListingCandidate is one scraped advertisement before validation. It is
// created once per detail-page visit and never mutated afterwards.
type ListingCandidate struct {
	URL             string    `json:"url" db:"url"`
	Title           string    `json:"title" db:"title"`
	PriceText       string    `json:"price_text" db:"price_text"`
	MileageText     string    `json:"mileage_text" db:"mileage_text"`
	YearText        string    `json:"year_text" db:"year_text"`
	SellerText      string    `json:"seller_text" db:"seller_text"`
	LocationText    string    `json:"location_text" db:"location_text"`
	PublishDateText string    `json:"publish_date_text" db:"publish_date_text"`
	ExtractedAt     time.Time `json:"extracted_at" db:"extracted_at"`
}

// HasTitle reports whether the candidate carries a usable title.
func (c *ListingCandidate) HasTitle() bool {
	return c.Title != "" && c.Title != Unspecified
}

// ValidatedListing is a candidate that passed model-identity and range
// checks, with the numeric fields parsed out of the display text.
type ValidatedListing struct {
	ListingCandidate

	Price   *float64 `json:"price" db:"price"`
	Mileage *float64 `json:"mileage" db:"mileage"`
	Year    *int     `json:"year" db:"year"`
}

// Category is the human-readable deal-quality bucket published downstream.
// The numeric scores are internal and dropped before publishing.
type Category string

const (
	CategoryExcellent Category = "Excelente"
	CategoryVeryGood  Category = "Muy Buena"
	CategoryGood      Category = "Buena"
	CategoryFair      Category = "Regular"
	CategoryLow       Category = "Baja"
	CategoryVeryLow   Category = "Muy Baja"
	CategoryNoData    Category = "Sin datos"
)

// ScoredListing is a ValidatedListing ranked within one batch. Scores are
// relative (min-max within the batch) and must be recomputed whenever batch
// membership changes.
type ScoredListing struct {
	ValidatedListing

	PriceScore   float64  `json:"price_score"`
	MileageScore float64  `json:"mileage_score"`
	YearScore    float64  `json:"year_score"`
	Composite    float64  `json:"composite_score"`
	Category     Category `json:"category"`
}

// RejectReason attributes a validation rejection for stats. Rejection is a
// normal outcome, never an error.
type RejectReason string

const (
	RejectNone     RejectReason = ""
	RejectNoTitle  RejectReason = "no_title"
	RejectIdentity RejectReason = "identity"
	RejectPrice    RejectReason = "price_range"
	RejectYear     RejectReason = "year_range"
)

// ValidationStats counts validator outcomes for one batch.
type ValidationStats struct {
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
	NoTitle    int `json:"no_title"`
	Identity   int `json:"identity"`
	PriceRange int `json:"price_range"`
	YearRange  int `json:"year_range"`
	WeakAccept int `json:"weak_accept"`
}

// CleanStats counts removals per cleaning filter. Attribution is
// first-matching-rule; the final set does not depend on filter order.
type CleanStats struct {
	Initial    int `json:"initial"`
	Duplicates int `json:"duplicates"`
	PriceFloor int `json:"price_floor"`
	Commercial int `json:"commercial"`
	Island     int `json:"island"`
	Mileage    int `json:"mileage"`
	Final      int `json:"final"`
}

// Removed returns the total number of records dropped by cleaning.
func (s CleanStats) Removed() int {
	return s.Initial - s.Final
}
