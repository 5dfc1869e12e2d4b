package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"moto_scrooper/models"
)

// ArchiveStore keeps the long-term cross-run history in Postgres. It is
// optional: runs work fine without DATABASE_URL, they just lose the
// historical price series.
type ArchiveStore struct {
	pool *pgxpool.Pool
}

func NewArchiveStore(ctx context.Context, connString string) (*ArchiveStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &ArchiveStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *ArchiveStore) Close() {
	s.pool.Close()
}

func (s *ArchiveStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS archive_runs (
		id UUID PRIMARY KEY,
		model_key TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		listings_found INT DEFAULT 0,
		listings_kept INT DEFAULT 0,
		listings_new INT DEFAULT 0,
		errors_count INT DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS archive_listings (
		fingerprint TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		model_key TEXT NOT NULL,
		title TEXT,
		price DOUBLE PRECISION,
		mileage DOUBLE PRECISION,
		year INT,
		seller TEXT,
		location TEXT,
		composite_score DOUBLE PRECISION,
		category TEXT,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		times_seen INT DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS archive_price_points (
		id BIGSERIAL PRIMARY KEY,
		fingerprint TEXT NOT NULL REFERENCES archive_listings(fingerprint),
		run_id UUID REFERENCES archive_runs(id),
		price DOUBLE PRECISION NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_archive_listings_model ON archive_listings(model_key, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_archive_prices_fp ON archive_price_points(fingerprint, observed_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// CreateRun registers a new archive run and returns its id.
func (s *ArchiveStore) CreateRun(ctx context.Context, modelKey string, startedAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_runs (id, model_key, started_at, status)
		VALUES ($1, $2, $3, 'running')`,
		id, modelKey, startedAt)
	return id, err
}

func (s *ArchiveStore) FinishRun(ctx context.Context, id uuid.UUID, run *models.ScrapeRun) error {
	status := "completed"
	if run.Status == models.RunStatusFailed {
		status = "failed"
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE archive_runs SET finished_at = NOW(), status = $2,
			listings_found = $3, listings_kept = $4, listings_new = $5, errors_count = $6
		WHERE id = $1`,
		id, status, run.ListingsFound, run.ListingsKept, run.ListingsNew, run.ErrorsCount)
	return err
}

// UpsertListing merges one scored listing into the archive keyed by URL
// fingerprint, and appends a price point when the price is known. A price
// drop on a known ad is the signal the whole archive exists for.
func (s *ArchiveStore) UpsertListing(ctx context.Context, runID uuid.UUID, modelKey, fingerprint string, l *models.ScoredListing) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_listings (fingerprint, url, model_key, title, price, mileage, year,
			seller, location, composite_score, category, first_seen_at, last_seen_at, times_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
		ON CONFLICT (fingerprint) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			mileage = COALESCE(EXCLUDED.mileage, archive_listings.mileage),
			year = COALESCE(EXCLUDED.year, archive_listings.year),
			seller = EXCLUDED.seller,
			location = EXCLUDED.location,
			composite_score = EXCLUDED.composite_score,
			category = EXCLUDED.category,
			last_seen_at = NOW(),
			times_seen = archive_listings.times_seen + 1`,
		fingerprint, l.URL, modelKey, l.Title, l.Price, l.Mileage, l.Year,
		l.SellerText, l.LocationText, l.Composite, string(l.Category))
	if err != nil {
		return err
	}

	if l.Price != nil {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO archive_price_points (fingerprint, run_id, price, observed_at)
			VALUES ($1, $2, $3, NOW())`,
			fingerprint, runID, *l.Price)
	}
	return err
}

// PriceHistory returns the observed prices for one ad, oldest first.
func (s *ArchiveStore) PriceHistory(ctx context.Context, fingerprint string) ([]models.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT price, observed_at FROM archive_price_points
		WHERE fingerprint = $1 ORDER BY observed_at`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Price, &p.ObservedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *ArchiveStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
