// Package postgres provides the Postgres-backed persistence layer for
// buildings, units, and scrape run audit rows.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// ErrNotFound is returned when a building does not exist.
var ErrNotFound = errors.New("building not found")

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements scrape.Store on Postgres.
type Store struct {
	db            DB
	zeroThreshold int
}

// Option configures a Store.
type Option func(*Store)

// WithZeroThreshold overrides the consecutive-zero needs_attention
// threshold.
func WithZeroThreshold(n int) Option {
	return func(s *Store) { s.zeroThreshold = n }
}

// New wraps an existing connection pool.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, zeroThreshold: scrape.DefaultZeroThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect creates a pooled store from a DSN.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool, opts...), nil
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.db.Close()
}

const upsertBuildingSQL = `
	INSERT INTO buildings
		(name, url, neighborhood, management_company, platform, property_code, api_token, last_scrape_status, consecutive_zero_count)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, 'never', 0)
	ON CONFLICT (url) DO UPDATE SET
		name = EXCLUDED.name,
		neighborhood = EXCLUDED.neighborhood,
		management_company = EXCLUDED.management_company,
		platform = COALESCE(EXCLUDED.platform, buildings.platform),
		property_code = CASE WHEN EXCLUDED.property_code <> '' THEN EXCLUDED.property_code ELSE buildings.property_code END,
		api_token = CASE WHEN EXCLUDED.api_token <> '' THEN EXCLUDED.api_token ELSE buildings.api_token END
	RETURNING (xmax = 0);
`

const deleteMissingBuildingsSQL = `DELETE FROM buildings WHERE NOT (url = ANY($1));`

// SyncRoster upserts the authoritative roster by URL and deletes buildings
// no longer on it. An operator-provided platform always overwrites;
// credentials overwrite only when the roster carries them.
func (s *Store) SyncRoster(ctx context.Context, entries []scrape.RosterEntry) (scrape.RosterSyncStats, error) {
	var stats scrape.RosterSyncStats
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		urls = append(urls, e.URL)

		var inserted bool
		err := s.db.QueryRow(ctx, upsertBuildingSQL,
			e.Name, e.URL, e.Neighborhood, e.ManagementCompany,
			string(e.Platform), e.PropertyCode, e.APIToken,
		).Scan(&inserted)
		if err != nil {
			return stats, fmt.Errorf("failed to upsert building %q: %w", e.URL, err)
		}
		if inserted {
			stats.Added++
		} else {
			stats.Updated++
		}
	}

	tag, err := s.db.Exec(ctx, deleteMissingBuildingsSQL, urls)
	if err != nil {
		return stats, fmt.Errorf("failed to delete missing buildings: %w", err)
	}
	stats.Deleted = int(tag.RowsAffected())
	return stats, nil
}

const buildingColumns = `
	id, name, url,
	COALESCE(neighborhood, ''), COALESCE(management_company, ''),
	COALESCE(platform, ''), COALESCE(property_code, ''), COALESCE(api_token, ''),
	last_scrape_status, last_scraped_at, consecutive_zero_count`

const listSchedulableSQL = `
	SELECT` + buildingColumns + `
	FROM buildings
	WHERE platform IS NOT NULL AND platform NOT IN ('', 'needs_classification', 'dead')
	ORDER BY id;
`

// ListSchedulable returns buildings eligible for batch runs.
func (s *Store) ListSchedulable(ctx context.Context) ([]scrape.Building, error) {
	rows, err := s.db.Query(ctx, listSchedulableSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedulable buildings: %w", err)
	}
	defer rows.Close()
	return scanBuildings(rows)
}

const getBuildingSQL = `SELECT` + buildingColumns + ` FROM buildings WHERE id = $1;`

// GetBuilding fetches one building by ID.
func (s *Store) GetBuilding(ctx context.Context, id int64) (scrape.Building, error) {
	b, err := scanBuilding(s.db.QueryRow(ctx, getBuildingSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Building{}, ErrNotFound
		}
		return scrape.Building{}, fmt.Errorf("failed to get building %d: %w", id, err)
	}
	return b, nil
}

const findBuildingsSQL = `
	SELECT` + buildingColumns + `
	FROM buildings
	WHERE name ILIKE '%' || $1 || '%' OR url ILIKE '%' || $1 || '%'
	ORDER BY id;
`

// FindBuildings searches by name or URL substring.
func (s *Store) FindBuildings(ctx context.Context, nameOrURL string) ([]scrape.Building, error) {
	rows, err := s.db.Query(ctx, findBuildingsSQL, nameOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to find buildings: %w", err)
	}
	defer rows.Close()
	return scanBuildings(rows)
}

// SetPlatform records a classification result.
func (s *Store) SetPlatform(ctx context.Context, id int64, platform scrape.Platform) error {
	tag, err := s.db.Exec(ctx, `UPDATE buildings SET platform = $1 WHERE id = $2;`, string(platform), id)
	if err != nil {
		return fmt.Errorf("failed to set platform for building %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCredentials stores a discovered credential pair.
func (s *Store) SetCredentials(ctx context.Context, id int64, creds scrape.Credentials) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE buildings SET property_code = $1, api_token = $2 WHERE id = $3;`,
		creds.PropertyCode, creds.APIToken, id)
	if err != nil {
		return fmt.Errorf("failed to set credentials for building %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const lockBuildingSQL = `
	SELECT last_scrape_status, consecutive_zero_count
	FROM buildings WHERE id = $1 FOR UPDATE;
`

const insertUnitSQL = `
	INSERT INTO units
		(building_id, unit_number, bed_type, non_canonical, rent_cents, availability_date,
		 floor_plan_name, floor_plan_url, baths, sqft, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

const updateBuildingStateSQL = `
	UPDATE buildings
	SET last_scrape_status = $1, consecutive_zero_count = $2, last_scraped_at = $3
	WHERE id = $4;
`

const insertRunSQL = `
	INSERT INTO scrape_runs (building_id, run_at, status, unit_count, error_message)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''));
`

// SaveResult applies one scrape outcome as a single transaction: the state
// transition, the unit replacement (successes only), and the immutable
// audit row. On failure the stored units are left untouched.
func (s *Store) SaveResult(ctx context.Context, buildingID int64, res scrape.Result) (scrape.Status, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Scan into plain locals; scanning straight into the Status-typed field
	// can leave zero values behind depending on the row source.
	var status string
	var zeroCount int
	if err := tx.QueryRow(ctx, lockBuildingSQL, buildingID).
		Scan(&status, &zeroCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to lock building %d: %w", buildingID, err)
	}
	current := scrape.Building{
		ID:                   buildingID,
		LastScrapeStatus:     scrape.Status(status),
		ConsecutiveZeroCount: zeroCount,
	}

	next := scrape.NextState(current, res.Succeeded, len(res.Units), s.zeroThreshold)

	if next.ReplaceUnits {
		if _, err := tx.Exec(ctx, `DELETE FROM units WHERE building_id = $1;`, buildingID); err != nil {
			return "", fmt.Errorf("failed to clear units for building %d: %w", buildingID, err)
		}
		for _, u := range res.Units {
			if _, err := tx.Exec(ctx, insertUnitSQL,
				buildingID, u.UnitNumber, u.BedType, u.NonCanonical, u.RentCents,
				u.AvailabilityDate, u.FloorPlanName, u.FloorPlanURL, u.Baths, u.Sqft, u.ScrapedAt,
			); err != nil {
				return "", fmt.Errorf("failed to insert unit %q: %w", u.UnitNumber, err)
			}
		}
	}

	if _, err := tx.Exec(ctx, updateBuildingStateSQL,
		string(next.Status), next.ZeroCount, res.At, buildingID); err != nil {
		return "", fmt.Errorf("failed to update building %d state: %w", buildingID, err)
	}

	runStatus := scrape.StatusSuccess
	if !res.Succeeded {
		runStatus = scrape.StatusFailed
	}
	if _, err := tx.Exec(ctx, insertRunSQL,
		buildingID, res.At, string(runStatus), len(res.Units), scrape.TruncateError(res.Err),
	); err != nil {
		return "", fmt.Errorf("failed to insert scrape run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit scrape result: %w", err)
	}
	return next.Status, nil
}

const listAvailabilitySQL = `
	SELECT b.name, COALESCE(b.neighborhood, ''),
		u.unit_number, u.bed_type, u.rent_cents, u.availability_date, u.sqft
	FROM units u
	JOIN buildings b ON b.id = u.building_id
	ORDER BY b.name, u.unit_number;
`

// ListAvailability returns the flattened current-availability snapshot.
func (s *Store) ListAvailability(ctx context.Context) ([]scrape.AvailabilityRow, error) {
	rows, err := s.db.Query(ctx, listAvailabilitySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	defer rows.Close()

	var out []scrape.AvailabilityRow
	for rows.Next() {
		var r scrape.AvailabilityRow
		if err := rows.Scan(&r.BuildingName, &r.Neighborhood, &r.UnitNumber,
			&r.BedType, &r.RentCents, &r.AvailabilityDate, &r.Sqft); err != nil {
			return nil, fmt.Errorf("failed to scan availability row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRuns deletes audit rows older than the cutoff and reports how many
// went.
func (s *Store) PruneRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM scrape_runs WHERE run_at < $1;`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scrape runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanBuilding(row pgx.Row) (scrape.Building, error) {
	var b scrape.Building
	err := row.Scan(
		&b.ID, &b.Name, &b.URL, &b.Neighborhood, &b.ManagementCompany,
		&b.Platform, &b.PropertyCode, &b.APIToken,
		&b.LastScrapeStatus, &b.LastScrapedAt, &b.ConsecutiveZeroCount,
	)
	return b, err
}

func scanBuildings(rows pgx.Rows) ([]scrape.Building, error) {
	var out []scrape.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan building row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
