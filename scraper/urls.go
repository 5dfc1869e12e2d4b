package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"moto_scrooper/config"
)

const searchBase = "https://es.wallapop.com/app/search"

// orderings the marketplace exposes; newest first because fresh ads are the
// whole point, price ascending second because underpriced ads surface there.
var orderings = []string{"newest", "price_low_to_high"}

// majorCities used for regional sweeps. The search index weights proximity,
// so a plain query from nowhere misses ads that a query anchored near a big
// city finds.
var majorCities = []struct {
	name     string
	lat, lng string
}{
	{"madrid", "40.4168", "-3.7038"},
	{"barcelona", "41.3851", "2.1734"},
	{"valencia", "39.4699", "-0.3763"},
	{"sevilla", "37.3891", "-5.9845"},
	{"bilbao", "43.2630", "-2.9350"},
	{"zaragoza", "41.6488", "-0.8891"},
	{"malaga", "36.7213", "-4.4214"},
	{"alicante", "38.3452", "-0.4810"},
}

const regionalDistanceMeters = "50000"

// SearchURLs expands a profile into the full set of marketplace search URLs,
// in priority order and de-duplicated:
//
//  1. every inclusion keyword under the profile's price window, once per
//     ordering;
//  2. the primary keyword combined with each model year;
//  3. the primary keyword over price sub-windows, so cheap outliers are not
//     buried below the fold of the full-range search;
//  4. regional sweeps of the primary keyword anchored on major cities.
//
// Test mode returns only the first URL so a run finishes in minutes.
func SearchURLs(profile *config.ModelProfile, testMode bool) []string {
	var urls []string
	seen := make(map[string]bool)

	add := func(q url.Values) {
		u := searchBase + "?" + q.Encode()
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	keywords := make([]string, 0, len(profile.Keywords))
	for _, kw := range profile.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil
	}
	primary := keywords[0]

	for _, kw := range keywords {
		for _, order := range orderings {
			add(baseQuery(kw, profile.PriceMin, profile.PriceMax, order))
		}
	}

	if testMode {
		if len(urls) > 1 {
			urls = urls[:1]
		}
		return urls
	}

	for year := profile.YearMin; year <= profile.YearMax; year++ {
		add(baseQuery(fmt.Sprintf("%s %d", primary, year), profile.PriceMin, profile.PriceMax, "newest"))
	}

	for _, window := range priceWindows(profile.PriceMin, profile.PriceMax) {
		add(baseQuery(primary, window[0], window[1], "price_low_to_high"))
	}

	for _, city := range majorCities {
		q := baseQuery(primary, profile.PriceMin, profile.PriceMax, "newest")
		q.Set("latitude", city.lat)
		q.Set("longitude", city.lng)
		q.Set("distance", regionalDistanceMeters)
		add(q)
	}

	return urls
}

func baseQuery(keywords string, priceMin, priceMax float64, order string) url.Values {
	q := url.Values{}
	q.Set("keywords", keywords)
	q.Set("category_ids", "14000") // motorcycles
	q.Set("min_sale_price", fmt.Sprintf("%.0f", priceMin))
	q.Set("max_sale_price", fmt.Sprintf("%.0f", priceMax))
	q.Set("order_by", order)
	return q
}

// priceWindows splits [min, max] into three overlapping sub-ranges. Overlap
// is intentional: an ad priced exactly on a boundary should appear in a
// window either way.
func priceWindows(min, max float64) [][2]float64 {
	if max <= min {
		return nil
	}
	step := (max - min) / 3
	return [][2]float64{
		{min, min + step*1.2},
		{min + step*0.9, min + step*2.2},
		{min + step*1.9, max},
	}
}
