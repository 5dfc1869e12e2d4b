package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"moto_scrooper/config"
	"moto_scrooper/logging"
	"moto_scrooper/scheduler"
	"moto_scrooper/scraper"
	"moto_scrooper/storage"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run all models once and exit")
	modelKey  = flag.String("model", "", "Run a single model (with -scrape) instead of all")
	checkOnly = flag.Bool("check", false, "Validate configuration and store connectivity, then exit")
	testMode  = flag.Bool("test", false, "Shortened run: one search URL per model")
	resetData = flag.Bool("reset", false, "Clear the operational database and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.TestMode = *testMode

	logFile, err := logging.Setup(cfg.LogDir)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting moto_scrooper...")
	log.Printf("Loaded %d model profiles", len(cfg.Models))
	for _, key := range cfg.ModelKeys() {
		m := cfg.Models[key]
		log.Printf("  - %s (%s, %.0f-%.0f EUR, %d-%d)", m.Name, key, m.PriceMin, m.PriceMax, m.YearMin, m.YearMax)
	}

	ctx := context.Background()

	if *checkOnly {
		runCheck(ctx, cfg)
		return
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *resetData {
		if err := sqliteStore.ResetAllData(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Operational data cleared")
		return
	}

	orchestrator, err := scraper.NewOrchestrator(cfg, sqliteStore)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	if cfg.DatabaseURL != "" {
		archive, err := storage.NewArchiveStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: archive unavailable, continuing without it: %v", err)
		} else {
			defer archive.Close()
			orchestrator.SetArchive(archive)
			log.Printf("Connected to archive: %s", maskConnectionString(cfg.DatabaseURL))
		}
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Printf("Warning: S3 upload unavailable: %v", err)
		} else {
			orchestrator.SetUploader(uploader)
			log.Printf("Workbook upload bucket: %s", cfg.S3.Bucket)
		}
	}

	if *scrapeNow {
		if *modelKey != "" {
			log.Printf("Running single model: %s", *modelKey)
			if err := orchestrator.RunModel(ctx, *modelKey); err != nil {
				log.Fatalf("Scrape failed: %v", err)
			}
		} else {
			log.Println("Running all models...")
			if err := orchestrator.RunAll(ctx); err != nil {
				log.Fatalf("Scrape failed: %v", err)
			}
		}
		log.Println("Scrape complete")
		return
	}

	sched := scheduler.New(cfg, orchestrator)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// runCheck verifies the configuration plus every store the configuration
// points at, and exits non-zero on the first problem.
func runCheck(ctx context.Context, cfg *config.Config) {
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Check failed: SQLite: %v", err)
	}
	store.Close()
	log.Printf("SQLite OK: %s", cfg.DBPath)

	if cfg.DatabaseURL != "" {
		archive, err := storage.NewArchiveStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Check failed: archive: %v", err)
		}
		archive.Close()
		log.Printf("Archive OK: %s", maskConnectionString(cfg.DatabaseURL))
	}

	if cfg.S3.Enabled() {
		if _, err := storage.NewS3Uploader(ctx, cfg.S3); err != nil {
			log.Fatalf("Check failed: S3: %v", err)
		}
		log.Printf("S3 OK: %s", cfg.S3.Bucket)
	}

	log.Println("Configuration OK")
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
