package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"moto_scrooper/models"
)

// SQLiteStore is the operational store: run bookkeeping, structured run
// logs, listing snapshots and the seen-URL history used to flag new ads.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		model_key TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_valid INTEGER DEFAULT 0,
		listings_kept INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		urls_failed INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		model_key TEXT
	);

	CREATE TABLE IF NOT EXISTS listing_snapshots (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		model_key TEXT NOT NULL,
		url TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		title TEXT,
		price REAL,
		mileage REAL,
		year INTEGER,
		seller TEXT,
		location TEXT,
		publish_date TEXT,
		composite_score REAL,
		category TEXT,
		scraped_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES scrape_runs(id)
	);

	CREATE TABLE IF NOT EXISTS seen_urls (
		fingerprint TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		model_key TEXT NOT NULL,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS model_stats (
		model_key TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_snapshots INTEGER,
		avg_run_duration_sec INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_model ON scrape_runs(model_key, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON listing_snapshots(run_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fingerprint ON listing_snapshots(fingerprint, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_seen_model ON seen_urls(model_key, last_seen_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (model_key, started_at, status)
		VALUES (?, ?, ?)`,
		run.ModelKey, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_valid = ?, listings_kept = ?, listings_new = ?, urls_failed = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsValid,
		run.ListingsKept, run.ListingsNew, run.URLsFailed, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, modelKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, model_key)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, modelKey)
	return err
}

// SaveSnapshots records the published state of one run's scored batch.
// Snapshots are append-only; history questions ("what did this ad cost two
// weeks ago") are answered by querying across runs.
func (s *SQLiteStore) SaveSnapshots(runID int64, modelKey string, listings []models.ScoredListing, fingerprint func(string) string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO listing_snapshots (run_id, model_key, url, fingerprint, title, price,
			mileage, year, seller, location, publish_date, composite_score, category, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i := range listings {
		l := &listings[i]
		if _, err := stmt.Exec(runID, modelKey, l.URL, fingerprint(l.URL), l.Title,
			l.Price, l.Mileage, l.Year, l.SellerText, l.LocationText,
			l.PublishDateText, l.Composite, string(l.Category), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkSeen upserts the URL into the seen history and reports whether this
// is the first time the ad has ever been observed for any model.
func (s *SQLiteStore) MarkSeen(fingerprint, url, modelKey string) (bool, error) {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO seen_urls (fingerprint, url, model_key, first_seen_at, last_seen_at, times_seen)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			times_seen = times_seen + 1`,
		fingerprint, url, modelKey, now, now)
	if err != nil {
		return false, err
	}

	// LastInsertId cannot distinguish insert from update here; the counter
	// can.
	var times int
	if err := s.db.QueryRow(`SELECT times_seen FROM seen_urls WHERE fingerprint = ?`, fingerprint).Scan(&times); err != nil {
		return false, err
	}
	return times == 1, nil
}

func (s *SQLiteStore) UpdateModelStats(modelKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO model_stats (model_key, last_run_at, last_run_status, total_snapshots, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE model_key = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE model_key = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM listing_snapshots WHERE model_key = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scrape_runs WHERE model_key = ? AND finished_at IS NOT NULL)
		ON CONFLICT(model_key) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_snapshots = excluded.total_snapshots,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		modelKey, modelKey, modelKey, modelKey, modelKey)
	return err
}

func (s *SQLiteStore) GetModelStats(modelKey string) (*models.ModelStats, error) {
	row := s.db.QueryRow(`
		SELECT model_key, last_run_at, last_run_status, total_snapshots, avg_run_duration_sec
		FROM model_stats WHERE model_key = ?`, modelKey)

	var st models.ModelStats
	var lastRun sql.NullTime
	var status sql.NullString
	var snapshots, avgDur sql.NullInt64
	err := row.Scan(&st.ModelKey, &lastRun, &status, &snapshots, &avgDur)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		t := lastRun.Time
		st.LastRunAt = &t
	}
	st.LastRunStatus = status.String
	st.TotalSnapshots = int(snapshots.Int64)
	st.AvgRunDurationSec = int(avgDur.Int64)
	return &st, nil
}

func (s *SQLiteStore) GetLastRunTime(modelKey string) (time.Time, error) {
	var lastRun sql.NullTime
	err := s.db.QueryRow(`
		SELECT last_run_at FROM model_stats WHERE model_key = ?`, modelKey).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return lastRun.Time, nil
}

// ResetAllData clears every operational table. Used by the -reset flag.
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"scrape_logs",
		"scrape_runs",
		"listing_snapshots",
		"seen_urls",
		"model_stats",
	}

	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
