package scraper

import (
	"net/url"
	"strings"
	"testing"

	"moto_scrooper/config"
)

func mt07Profile() *config.ModelProfile {
	return &config.ModelProfile{
		Key:      "mt07",
		Keywords: []string{"mt07", "mt 07", "mt-07"},
		PriceMin: 3000,
		PriceMax: 7500,
		YearMin:  2014,
		YearMax:  2025,
	}
}

func TestSearchURLs(t *testing.T) {
	profile := mt07Profile()
	urls := SearchURLs(profile, false)

	// 3 keywords x 2 orderings + 12 year queries + 3 price windows + 8 cities.
	want := 3*2 + 12 + 3 + 8
	if len(urls) != want {
		t.Fatalf("got %d urls, want %d", len(urls), want)
	}

	u, err := url.Parse(urls[0])
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("keywords") != "mt07" {
		t.Errorf("keywords = %q", q.Get("keywords"))
	}
	if q.Get("min_sale_price") != "3000" || q.Get("max_sale_price") != "7500" {
		t.Errorf("price window = %q-%q", q.Get("min_sale_price"), q.Get("max_sale_price"))
	}
	if q.Get("order_by") != "newest" {
		t.Errorf("order_by = %q", q.Get("order_by"))
	}
	if q.Get("category_ids") != "14000" {
		t.Errorf("category_ids = %q", q.Get("category_ids"))
	}

	for _, s := range urls {
		if !strings.HasPrefix(s, "https://es.wallapop.com/app/search?") {
			t.Errorf("unexpected base: %s", s)
		}
	}
}

func TestSearchURLsYearExpansionUsesPrimaryKeyword(t *testing.T) {
	urls := SearchURLs(mt07Profile(), false)

	found := false
	for _, s := range urls {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		if u.Query().Get("keywords") == "mt07 2014" {
			found = true
		}
		if kw := u.Query().Get("keywords"); strings.HasPrefix(kw, "mt 07 2") {
			t.Errorf("year expansion should use only the primary keyword, got %q", kw)
		}
	}
	if !found {
		t.Error("expected a year-expanded query for the first model year")
	}
}

func TestSearchURLsRegionalSweep(t *testing.T) {
	urls := SearchURLs(mt07Profile(), false)

	regional := 0
	for _, s := range urls {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		if q.Get("latitude") == "" {
			continue
		}
		regional++
		if q.Get("distance") != "50000" {
			t.Errorf("distance = %q", q.Get("distance"))
		}
		if q.Get("keywords") != "mt07" {
			t.Errorf("regional sweep keywords = %q", q.Get("keywords"))
		}
	}
	if regional != 8 {
		t.Errorf("got %d regional urls, want 8", regional)
	}
}

func TestSearchURLsTestModeReturnsOneURL(t *testing.T) {
	urls := SearchURLs(mt07Profile(), true)
	if len(urls) != 1 {
		t.Fatalf("test mode should return one url, got %d", len(urls))
	}
	u, err := url.Parse(urls[0])
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("keywords") != "mt07" {
		t.Errorf("test mode should use the primary keyword, got %q", u.Query().Get("keywords"))
	}
}

func TestSearchURLsDedupes(t *testing.T) {
	profile := &config.ModelProfile{
		Key:      "z900",
		Keywords: []string{"z900", "z900", " z900 "},
		PriceMin: 4500,
		PriceMax: 9000,
		YearMin:  2017,
		YearMax:  2017,
	}

	urls := SearchURLs(profile, false)
	// 1 keyword x 2 orderings + 1 year + 3 windows + 8 cities.
	if want := 2 + 1 + 3 + 8; len(urls) != want {
		t.Fatalf("duplicate keywords should collapse: got %d, want %d", len(urls), want)
	}
}

func TestSearchURLsEmptyKeywords(t *testing.T) {
	profile := &config.ModelProfile{Key: "x", Keywords: []string{" ", ""}}
	if urls := SearchURLs(profile, false); urls != nil {
		t.Fatalf("expected nil, got %v", urls)
	}
}
