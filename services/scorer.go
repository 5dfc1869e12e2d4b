package services

import (
	"math"
	"sort"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

// Scorer ranks a cleaned batch by deal quality. Scores are min-max
// normalized within the batch, so they are relative: the same listing can
// land in different categories on different days depending on what it is
// compared against.
type Scorer struct {
	weights config.ScoringConfig
}

func NewScorer(weights config.ScoringConfig) *Scorer {
	return &Scorer{weights: weights}
}

const neutralScore = 5.0

// Score computes per-field and composite scores and returns the batch
// sorted best-first. Listings missing price or year cannot be ranked; they
// keep their input order and are appended after the ranked block with the
// no-data category. Missing mileage alone is treated as zero kilometres,
// which scores as best possible.
func (s *Scorer) Score(in []models.ValidatedListing) []models.ScoredListing {
	out := make([]models.ScoredListing, 0, len(in))
	var noData []models.ScoredListing

	scorable := make([]*models.ScoredListing, 0, len(in))
	for i := range in {
		sl := models.ScoredListing{ValidatedListing: in[i]}
		if in[i].Price == nil || in[i].Year == nil {
			sl.Category = models.CategoryNoData
			noData = append(noData, sl)
			continue
		}
		out = append(out, sl)
	}
	for i := range out {
		scorable = append(scorable, &out[i])
	}

	if len(scorable) > 0 {
		priceMin, priceMax := bounds(scorable, func(l *models.ScoredListing) float64 { return *l.Price })
		kmMin, kmMax := bounds(scorable, mileageOrZero)
		yearMin, yearMax := bounds(scorable, func(l *models.ScoredListing) float64 { return float64(*l.Year) })

		for _, l := range scorable {
			// Lower price and mileage are better, newer year is better.
			l.PriceScore = scaleInverted(*l.Price, priceMin, priceMax)
			l.MileageScore = scaleInverted(mileageOrZero(l), kmMin, kmMax)
			l.YearScore = scale(float64(*l.Year), yearMin, yearMax)

			l.Composite = s.weights.PriceWeight*l.PriceScore +
				s.weights.MileageWeight*l.MileageScore +
				s.weights.YearWeight*l.YearScore
			l.Category = categorize(l.Composite)
		}

		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Composite > out[j].Composite
		})
	}

	return append(out, noData...)
}

func mileageOrZero(l *models.ScoredListing) float64 {
	if l.Mileage == nil {
		return 0
	}
	return *l.Mileage
}

func bounds(batch []*models.ScoredListing, field func(*models.ScoredListing) float64) (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, l := range batch {
		v := field(l)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// scale maps v onto [0, 10] where max is best. When the whole batch shares
// one value there is nothing to compare, so everyone gets the neutral 5.0.
func scale(v, min, max float64) float64 {
	if max == min {
		return neutralScore
	}
	return (v - min) / (max - min) * 10
}

// scaleInverted maps v onto [0, 10] where min is best.
func scaleInverted(v, min, max float64) float64 {
	if max == min {
		return neutralScore
	}
	return (max - v) / (max - min) * 10
}

// categorize buckets a composite score by its percentage of the maximum 10.
func categorize(composite float64) models.Category {
	pct := composite / 10 * 100
	switch {
	case pct >= 85:
		return models.CategoryExcellent
	case pct >= 70:
		return models.CategoryVeryGood
	case pct >= 55:
		return models.CategoryGood
	case pct >= 40:
		return models.CategoryFair
	case pct >= 25:
		return models.CategoryLow
	default:
		return models.CategoryVeryLow
	}
}
