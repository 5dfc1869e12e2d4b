package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"moto_scrooper/models"
	"moto_scrooper/parse"
)

// fieldStrategy is one way of locating a field on a detail page. Strategies
// for a field run in order; the first one whose result passes the
// plausibility check wins. Marketplace markup changes often, so the chains
// mix stable data-testid hooks with looser class and text fallbacks.
type fieldStrategy struct {
	selector  string
	attr      string // empty means text content
	plausible func(string) bool
}

var titleStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-title"]`, plausible: plausibleTitle},
	{selector: `h1[class*="item-detail"]`, plausible: plausibleTitle},
	{selector: `h1`, plausible: plausibleTitle},
	{selector: `meta[property="og:title"]`, attr: "content", plausible: plausibleTitle},
}

var priceStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-price"]`, plausible: plausiblePrice},
	{selector: `span[class*="item-detail-price"]`, plausible: plausiblePrice},
	{selector: `[class*="ItemDetail__price"]`, plausible: plausiblePrice},
	{selector: `meta[itemprop="price"]`, attr: "content", plausible: plausiblePrice},
}

var mileageStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-km"]`, plausible: plausibleMileage},
	{selector: `[class*="item-detail-attributes"] span:contains("km")`, plausible: plausibleMileage},
	{selector: `span:contains("kilómetros")`, plausible: plausibleMileage},
}

var yearStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-year"]`, plausible: plausibleYear},
	{selector: `[class*="item-detail-attributes"] span:contains("Año")`, plausible: plausibleYear},
}

var sellerStrategies = []fieldStrategy{
	{selector: `[data-testid="seller-name"]`, plausible: plausibleShortText},
	{selector: `[class*="UserBasicInfo"] h3`, plausible: plausibleShortText},
	{selector: `a[href*="/user/"] span`, plausible: plausibleShortText},
}

var locationStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-location"]`, plausible: plausibleShortText},
	{selector: `a[href*="/search?latitude"]`, plausible: plausibleShortText},
	{selector: `[class*="item-detail-location"]`, plausible: plausibleShortText},
}

var publishDateStrategies = []fieldStrategy{
	{selector: `[data-testid="item-detail-stats"] span`, plausible: plausibleShortText},
	{selector: `[class*="item-detail-stats"]`, plausible: plausibleShortText},
}

func plausibleTitle(s string) bool {
	return len(s) >= 3 && len(s) <= 300
}

var digitRe = regexp.MustCompile(`\d`)

func plausiblePrice(s string) bool {
	return len(s) <= 40 && digitRe.MatchString(s)
}

func plausibleMileage(s string) bool {
	return len(s) <= 60 && digitRe.MatchString(s)
}

var fourDigitRe = regexp.MustCompile(`(19|20)\d{2}`)

func plausibleYear(s string) bool {
	return len(s) <= 60 && fourDigitRe.MatchString(s)
}

func plausibleShortText(s string) bool {
	return s != "" && len(s) <= 120
}

var mileageBodyRe = regexp.MustCompile(`(?i)\b\d{1,3}(?:[.,]\d{3})+\s*(?:km|kms|kilometros|kilómetros)\b|\b\d{3,6}\s*(?:km|kms|kilometros|kilómetros)\b`)

// mileageFromBody scans the free text of the whole page for an odometer
// phrase. Sellers routinely bury the mileage in the description instead of
// filling the attribute field.
func mileageFromBody(doc *goquery.Document) string {
	return mileageBodyRe.FindString(bodyText(doc))
}

var yearBodyRe = regexp.MustCompile(`(?i)\b(?:del\s+año|del\s+ano|año|ano|del|matriculad[oa](?:\s+en)?)\s+(?:19|20)\d{2}\b`)

// yearFromBody scans the page text for a year phrase with manufacture
// context ("del año 2020", "matriculada en 2019"). Each hit is re-checked
// with its left context so inspection and warranty dates ("garantía del
// 2026") stay out.
func yearFromBody(doc *goquery.Document) string {
	text := bodyText(doc)
	for _, loc := range yearBodyRe.FindAllStringIndex(text, -1) {
		from := loc[0] - 30
		if from < 0 {
			from = 0
		}
		if _, ok := parse.Year(text[from:loc[1]]); ok {
			return text[loc[0]:loc[1]]
		}
	}
	return ""
}

func bodyText(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

// extractField walks a strategy chain over the document, then tries the
// whole-page fallback when no selector produced a plausible value.
func extractField(doc *goquery.Document, strategies []fieldStrategy, bodyFallback func(*goquery.Document) string) string {
	for _, st := range strategies {
		sel := doc.Find(st.selector).First()
		if sel.Length() == 0 {
			continue
		}

		var raw string
		if st.attr != "" {
			raw, _ = sel.Attr(st.attr)
		} else {
			raw = sel.Text()
		}

		raw = strings.Join(strings.Fields(raw), " ")
		if raw != "" && st.plausible(raw) {
			return raw
		}
	}

	if bodyFallback != nil {
		if raw := bodyFallback(doc); raw != "" {
			return raw
		}
	}
	return models.Unspecified
}

// ExtractCandidate builds a listing candidate from a detail page. Every
// field is independent: one broken selector degrades a single column, not
// the record.
func ExtractCandidate(doc *goquery.Document, pageURL string) models.ListingCandidate {
	return models.ListingCandidate{
		URL:             pageURL,
		Title:           extractField(doc, titleStrategies, nil),
		PriceText:       extractField(doc, priceStrategies, nil),
		MileageText:     extractField(doc, mileageStrategies, mileageFromBody),
		YearText:        extractField(doc, yearStrategies, yearFromBody),
		SellerText:      extractField(doc, sellerStrategies, nil),
		LocationText:    extractField(doc, locationStrategies, nil),
		PublishDateText: extractField(doc, publishDateStrategies, nil),
		ExtractedAt:     time.Now(),
	}
}

var itemPathRe = regexp.MustCompile(`^/item/[a-z0-9\-]+$`)

// CollectItemLinks pulls listing detail links out of a search results page.
// Promoted slots and banner links carry extra path segments or query
// params, so only clean /item/ paths count.
func CollectItemLinks(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find(`a[href*="/item/"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		// Promoted slots are tagged with tracking query params; organic
		// result links are bare paths.
		if strings.Contains(href, "?") {
			return
		}
		href = strings.TrimSuffix(strings.Split(href, "#")[0], "/")

		path := href
		if i := strings.Index(href, "/item/"); i > 0 {
			path = href[i:]
		}
		if !itemPathRe.MatchString(path) {
			return
		}

		full := href
		if strings.HasPrefix(href, "/") {
			full = strings.TrimSuffix(baseURL, "/") + href
		}
		if seen[full] {
			return
		}
		seen[full] = true
		links = append(links, full)
	})

	return links
}
