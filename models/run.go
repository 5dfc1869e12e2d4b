package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID            int64      `json:"id" db:"id"`
	ModelKey      string     `json:"model_key" db:"model_key"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsValid int        `json:"listings_valid" db:"listings_valid"`
	ListingsKept  int        `json:"listings_kept" db:"listings_kept"`
	ListingsNew   int        `json:"listings_new" db:"listings_new"`
	URLsFailed    int        `json:"urls_failed" db:"urls_failed"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

// PricePoint is one observed price for an ad in the archive.
type PricePoint struct {
	Price      float64   `json:"price" db:"price"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

type ModelStats struct {
	ModelKey          string     `json:"model_key" db:"model_key"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalSnapshots    int        `json:"total_snapshots" db:"total_snapshots"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
