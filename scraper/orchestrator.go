package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"moto_scrooper/config"
	"moto_scrooper/identity"
	"moto_scrooper/models"
	"moto_scrooper/publish"
	"moto_scrooper/services"
	"moto_scrooper/storage"
)

// Orchestrator runs the whole pipeline for each configured model: scrape,
// validate, clean, score, persist, publish. Models run sequentially; the
// marketplace tolerates one browser, not five.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	handlers map[string]Handler

	matchers   map[string]*services.Matcher
	validators map[string]*services.Validator
	cleaner    *services.Cleaner
	scorer     *services.Scorer
	publisher  *publish.Publisher

	archive  *storage.ArchiveStore
	uploader *storage.S3Uploader

	// runMu serializes runs across all entry points. Cron fires each job in
	// its own goroutine, so overlapping schedules would otherwise share the
	// browser.
	runMu sync.Mutex
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		handlers:   make(map[string]Handler),
		matchers:   make(map[string]*services.Matcher),
		validators: make(map[string]*services.Validator),
		cleaner:    services.NewCleaner(cfg.Cleaning),
		scorer:     services.NewScorer(cfg.Scoring),
		publisher:  publish.NewPublisher(cfg.ResultsDir),
	}

	for key, profile := range cfg.Models {
		matcher, err := services.NewMatcher(profile)
		if err != nil {
			return nil, fmt.Errorf("compile matcher: %w", err)
		}
		o.matchers[key] = matcher
		o.validators[key] = services.NewValidator(profile, matcher)
		o.handlers[key] = NewHandler(cfg, profile)
	}

	return o, nil
}

// SetArchive wires the optional Postgres archive.
func (o *Orchestrator) SetArchive(archive *storage.ArchiveStore) {
	o.archive = archive
}

// SetUploader wires the optional S3 workbook upload.
func (o *Orchestrator) SetUploader(uploader *storage.S3Uploader) {
	o.uploader = uploader
}

// RunAll scrapes every configured model in key order. A failed model is
// logged and the next one still runs.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	for _, key := range o.cfg.ModelKeys() {
		if err := o.RunModel(ctx, key); err != nil {
			log.Printf("[%s] run failed: %v", key, err)
		}
	}
	return nil
}

func (o *Orchestrator) RunModel(ctx context.Context, modelKey string) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	profile, ok := o.cfg.Models[modelKey]
	if !ok {
		return fmt.Errorf("unknown model: %s", modelKey)
	}
	handler := o.handlers[modelKey]

	run := &models.ScrapeRun{
		ModelKey:  modelKey,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("starting scrape for %s", profile.Name), modelKey)
	if last, err := o.store.GetLastRunTime(modelKey); err == nil && !last.IsZero() {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("previous run %s ago", time.Since(last).Round(time.Minute)), modelKey)
	}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("[%s] run record not updated: %v", modelKey, err)
		}
		if err := o.store.UpdateModelStats(modelKey); err != nil {
			log.Printf("[%s] model stats not updated: %v", modelKey, err)
		}
	}()

	candidates, err := handler.Scrape(ctx, profile)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("scrape failed: %v", err), modelKey)
		return err
	}
	run.ListingsFound = len(candidates)

	valid, vstats := o.validators[modelKey].ValidateBatch(candidates)
	run.ListingsValid = len(valid)
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf(
		"validated %d/%d (no title %d, wrong model %d, price %d, year %d, weak %d)",
		vstats.Accepted, vstats.Candidates, vstats.NoTitle, vstats.Identity,
		vstats.PriceRange, vstats.YearRange, vstats.WeakAccept), modelKey)

	kept, cstats := o.cleaner.Clean(profile, valid)
	run.ListingsKept = len(kept)
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf(
		"cleaned %d -> %d (dup %d, floor %d, dealer %d, island %d, km %d)",
		cstats.Initial, cstats.Final, cstats.Duplicates, cstats.PriceFloor,
		cstats.Commercial, cstats.Island, cstats.Mileage), modelKey)

	scored := o.scorer.Score(kept)

	for i := range scored {
		fp := identity.Fingerprint(scored[i].URL)
		isNew, err := o.store.MarkSeen(fp, scored[i].URL, modelKey)
		if err != nil {
			log.Printf("[%s] seen history not updated for %s: %v", modelKey, scored[i].URL, err)
			run.ErrorsCount++
			continue
		}
		if isNew {
			run.ListingsNew++
		}
	}

	if err := o.store.SaveSnapshots(run.ID, modelKey, scored, identity.Fingerprint); err != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("snapshots not saved: %v", err), modelKey)
		run.ErrorsCount++
	}

	o.archiveBatch(ctx, run, modelKey, scored)

	if len(scored) == 0 {
		o.log(run.ID, models.LogLevelWarn, "no listings survived the pipeline, nothing to publish", modelKey)
	} else {
		sheetName := publish.SheetName(profile, run.StartedAt)
		snapshotPath, err := o.publisher.Publish(profile, sheetName, scored)
		if err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("publish failed: %v", err), modelKey)
			run.ErrorsCount++
		} else {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("published %d listings to %q (%s)", len(scored), sheetName, snapshotPath), modelKey)
			o.uploadWorkbook(ctx, run, modelKey, snapshotPath)
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf(
		"completed: %d found, %d valid, %d kept, %d new, %d errors",
		run.ListingsFound, run.ListingsValid, run.ListingsKept, run.ListingsNew, run.ErrorsCount), modelKey)

	return nil
}

func (o *Orchestrator) archiveBatch(ctx context.Context, run *models.ScrapeRun, modelKey string, scored []models.ScoredListing) {
	if o.archive == nil {
		return
	}

	archiveID, err := o.archive.CreateRun(ctx, modelKey, run.StartedAt)
	if err != nil {
		log.Printf("[%s] archive unavailable: %v", modelKey, err)
		return
	}

	for i := range scored {
		fp := identity.Fingerprint(scored[i].URL)
		if err := o.archive.UpsertListing(ctx, archiveID, modelKey, fp, &scored[i]); err != nil {
			log.Printf("[%s] archive upsert failed for %s: %v", modelKey, scored[i].URL, err)
			continue
		}
		o.notePriceDrop(ctx, run, modelKey, fp, &scored[i])
	}

	if err := o.archive.FinishRun(ctx, archiveID, run); err != nil {
		log.Printf("[%s] archive run not finished: %v", modelKey, err)
	}
}

// notePriceDrop compares the just-archived price against the previous
// observation for the same ad. A seller lowering the price is the strongest
// buy signal the pipeline produces, so it gets its own log line.
func (o *Orchestrator) notePriceDrop(ctx context.Context, run *models.ScrapeRun, modelKey, fingerprint string, l *models.ScoredListing) {
	if l.Price == nil {
		return
	}
	points, err := o.archive.PriceHistory(ctx, fingerprint)
	if err != nil || len(points) < 2 {
		return
	}
	prev := points[len(points)-2].Price
	if *l.Price < prev {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf(
			"price drop on %s: %.0f -> %.0f", l.URL, prev, *l.Price), modelKey)
	}
}

func (o *Orchestrator) uploadWorkbook(ctx context.Context, run *models.ScrapeRun, modelKey, snapshotPath string) {
	if o.uploader == nil {
		return
	}
	url, err := o.uploader.UploadWorkbook(ctx, modelKey, snapshotPath)
	if err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("workbook upload failed: %v", err), modelKey)
		return
	}
	o.log(run.ID, models.LogLevelInfo, "workbook uploaded: "+url, modelKey)
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, modelKey string) {
	log.Printf("[%s] %s: %s", level, modelKey, message)
	if err := o.store.Log(&runID, level, message, modelKey); err != nil {
		log.Printf("log record not written: %v", err)
	}
}

func (o *Orchestrator) ModelKeys() []string {
	return o.cfg.ModelKeys()
}
