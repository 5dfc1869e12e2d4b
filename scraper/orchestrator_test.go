package scraper

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moto_scrooper/config"
	"moto_scrooper/models"
	"moto_scrooper/storage"
)

// stubHandler fakes a scrape and records whether two scrapes ever ran at
// the same time.
type stubHandler struct {
	key        string
	delay      time.Duration
	active     atomic.Int32
	overlapped atomic.Bool
}

func (h *stubHandler) Key() string { return h.key }

func (h *stubHandler) Scrape(ctx context.Context, profile *config.ModelProfile) ([]models.ListingCandidate, error) {
	if h.active.Add(1) > 1 {
		h.overlapped.Store(true)
	}
	time.Sleep(h.delay)
	h.active.Add(-1)
	return nil, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubHandler) {
	t.Helper()

	cfg := &config.Config{
		ResultsDir: t.TempDir(),
		Scoring:    config.ScoringConfig{PriceWeight: 0.40, MileageWeight: 0.35, YearWeight: 0.25},
		Models: map[string]*config.ModelProfile{
			"z900": {
				Key:             "z900",
				Name:            "Kawasaki Z900",
				Brand:           "kawasaki",
				PriceMin:        4500,
				PriceMax:        9000,
				YearMin:         2017,
				YearMax:         2025,
				SheetName:       "Z900",
				Keywords:        []string{"z900"},
				CleanPriceFloor: 2500,
			},
		},
	}

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	o, err := NewOrchestrator(cfg, store)
	if err != nil {
		t.Fatal(err)
	}

	stub := &stubHandler{key: "z900", delay: 50 * time.Millisecond}
	o.handlers["z900"] = stub
	return o, stub
}

func TestRunModelSerializesConcurrentTriggers(t *testing.T) {
	o, stub := newTestOrchestrator(t)
	ctx := context.Background()

	// Cron fires each schedule in its own goroutine, so overlapping
	// expressions hit RunModel concurrently.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.RunModel(ctx, "z900"); err != nil {
				t.Errorf("RunModel: %v", err)
			}
		}()
	}
	wg.Wait()

	if stub.overlapped.Load() {
		t.Fatal("two runs used the scrape handler at the same time")
	}
}

func TestRunModelUnknownKey(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if err := o.RunModel(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown model key")
	}
}
