package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"moto_scrooper/config"
	"moto_scrooper/scraper"
)

// Scheduler fires model runs on their configured cron schedules. Profiles
// without a schedule fall back to the global cron or interval. Cron jobs
// run in their own goroutines; the orchestrator serializes them so
// overlapping expressions queue instead of sharing the browser.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	scheduled := 0

	for _, key := range s.cfg.ModelKeys() {
		profile := s.cfg.Models[key]
		if profile.CronSchedule == "" {
			continue
		}

		modelKey := key
		_, err := s.cron.AddFunc(profile.CronSchedule, func() {
			log.Printf("[%s] scheduled run starting", modelKey)
			if err := s.orchestrator.RunModel(ctx, modelKey); err != nil {
				log.Printf("[%s] scheduled run error: %v", modelKey, err)
			}
		})
		if err != nil {
			return fmt.Errorf("model %s: invalid cron %q: %w", key, profile.CronSchedule, err)
		}
		log.Printf("[%s] scheduled: %s", key, profile.CronSchedule)
		scheduled++
	}

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("global cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		scheduled++
	}

	if scheduled > 0 {
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("interval schedule: every %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("no schedule configured, daemon idle until triggered")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}
