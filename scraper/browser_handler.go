package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

// BrowserHandler drives a real Chromium session through the marketplace:
// search page, infinite scroll, then one detail-page visit per listing.
// The site is a client-rendered SPA behind bot protection, so there is no
// cheaper path than a browser.
type BrowserHandler struct {
	cfg     *config.Config
	profile *config.ModelProfile

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	bctx        playwright.BrowserContext
	initialized bool
}

func NewBrowserHandler(cfg *config.Config, profile *config.ModelProfile) *BrowserHandler {
	return &BrowserHandler{cfg: cfg, profile: profile}
}

func (h *BrowserHandler) Key() string {
	return h.profile.Key
}

// Scrape walks every search URL for the profile and returns all candidates
// collected before the run budget expires. Per-URL failures are logged and
// skipped; the error return is reserved for browser startup problems.
func (h *BrowserHandler) Scrape(ctx context.Context, profile *config.ModelProfile) ([]models.ListingCandidate, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	runCtx, cancel := context.WithTimeout(ctx, h.cfg.Scraper.RunBudget)
	defer cancel()

	searchURLs := SearchURLs(profile, h.cfg.TestMode)
	log.Printf("[%s] %d search URLs", profile.Key, len(searchURLs))

	var all []models.ListingCandidate
	visited := make(map[string]bool)

	for i, searchURL := range searchURLs {
		if runCtx.Err() != nil {
			log.Printf("[%s] run budget exhausted after %d/%d search URLs", profile.Key, i, len(searchURLs))
			break
		}

		candidates, err := h.scrapeSearchURL(runCtx, searchURL, visited)
		if err != nil {
			log.Printf("[%s] search URL failed: %v", profile.Key, err)
			continue
		}
		all = append(all, candidates...)

		if i < len(searchURLs)-1 {
			sleepCtx(runCtx, h.cfg.Scraper.SearchDelay)
		}
	}

	log.Printf("[%s] collected %d candidates", profile.Key, len(all))
	return all, nil
}

func (h *BrowserHandler) scrapeSearchURL(ctx context.Context, searchURL string, visited map[string]bool) ([]models.ListingCandidate, error) {
	urlCtx, cancel := context.WithTimeout(ctx, h.cfg.Scraper.URLBudget)
	defer cancel()

	page, err := h.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	if err := h.navigate(page, searchURL); err != nil {
		return nil, err
	}
	h.handleConsent(page)
	h.scrollToLoad(urlCtx, page)

	links, err := h.collectLinks(page)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] %d listing links on results page", h.profile.Key, len(links))

	max := h.cfg.Scraper.MaxPerSearchURL
	var out []models.ListingCandidate
	for _, link := range links {
		if urlCtx.Err() != nil {
			log.Printf("[%s] URL budget exhausted, %d/%d listings visited", h.profile.Key, len(out), len(links))
			break
		}
		if visited[link] {
			continue
		}
		visited[link] = true

		c, err := h.scrapeDetail(page, link)
		if err != nil {
			log.Printf("[%s] detail page skipped %s: %v", h.profile.Key, link, err)
			continue
		}
		out = append(out, c)

		if max > 0 && len(out) >= max {
			break
		}
		sleepCtx(urlCtx, jitter(h.cfg.Scraper.ListingDelay))
	}

	return out, nil
}

// scrapeDetail loads one advertisement and extracts a candidate from the
// rendered HTML. Extraction itself cannot fail; only navigation can.
func (h *BrowserHandler) scrapeDetail(page playwright.Page, link string) (models.ListingCandidate, error) {
	if err := h.navigate(page, link); err != nil {
		return models.ListingCandidate{}, err
	}

	html, err := page.Content()
	if err != nil {
		return models.ListingCandidate{}, fmt.Errorf("page content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.ListingCandidate{}, fmt.Errorf("parse html: %w", err)
	}

	return ExtractCandidate(doc, link), nil
}

func (h *BrowserHandler) collectLinks(page playwright.Page) ([]string, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return CollectItemLinks(doc, "https://es.wallapop.com"), nil
}

// navigate loads a URL with retries. The marketplace intermittently drops
// connections under load; a short pause and a second attempt usually lands.
func (h *BrowserHandler) navigate(page playwright.Page, url string) error {
	var lastErr error
	for attempt := 0; attempt < h.cfg.Scraper.MaxNavRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(h.cfg.Scraper.RetryDelay)
		}
		_, lastErr = page.Goto(url, playwright.PageGotoOptions{
			Timeout:   playwright.Float(float64(h.cfg.Scraper.NavTimeout.Milliseconds())),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if lastErr == nil {
			page.WaitForTimeout(float64(500 + rand.Intn(1000)))
			return nil
		}
		log.Printf("[%s] navigation attempt %d failed: %v", h.profile.Key, attempt+1, lastErr)
	}
	return fmt.Errorf("navigate %s: %w", url, lastErr)
}

// scrollToLoad triggers the results page's infinite scroll until the page
// height stops growing or the scroll cap is reached.
func (h *BrowserHandler) scrollToLoad(ctx context.Context, page playwright.Page) {
	var lastHeight float64

	for i := 0; i < h.cfg.Scraper.MaxScrolls; i++ {
		if ctx.Err() != nil {
			return
		}

		page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
		page.WaitForTimeout(float64(h.cfg.Scraper.ScrollPause.Milliseconds()))

		result, err := page.Evaluate(`document.body.scrollHeight`)
		if err != nil {
			return
		}
		height, ok := toFloat(result)
		if !ok {
			return
		}
		if height == lastHeight {
			// "Ver más productos" button gates further batches on some
			// result pages.
			more := page.Locator(`button:has-text("Ver más productos")`).First()
			if visible, _ := more.IsVisible(); visible {
				more.Click()
				page.WaitForTimeout(float64(h.cfg.Scraper.ScrollPause.Milliseconds()))
				continue
			}
			return
		}
		lastHeight = height
	}
}

func (h *BrowserHandler) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"#onetrust-accept-btn-handler",
		"button:has-text('Aceptar todo')",
		"button:has-text('Aceptar')",
		"button[id*='accept']",
		"button:has-text('Accept All')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("[%s] accepting cookie banner: %s", h.profile.Key, selector)
			btn.Click()
			page.WaitForTimeout(1000)
			return
		}
	}
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.cfg.Scraper.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	h.bctx, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
		Locale:    playwright.String("es-ES"),
	})
	if err != nil {
		h.browser.Close()
		h.pw.Stop()
		return fmt.Errorf("browser context: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.bctx != nil {
		h.bctx.Close()
		h.bctx = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}

// jitter spreads a base delay by ±30% so request timing does not look
// mechanical.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	spread := int64(float64(base) * 0.3)
	return base + time.Duration(rand.Int63n(2*spread+1)-spread)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
