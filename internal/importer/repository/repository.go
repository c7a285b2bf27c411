// Package repository persists import runs and performs the idempotent
// multi-entity upsert that materializes canonical records into the
// normalized schema.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chiro_dashboard_backend/internal/importer/domain"
)

var (
	ErrNotFound  = errors.New("import run not found")
	ErrRunActive = errors.New("an import run is already active")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const runColumns = `
	id, status, triggered_by, incremental, notes, started_at, completed_at,
	total_fetched, total_skipped, total_processed, records_created, records_updated,
	conversations_created, bookings_created, leads_created, engaged_conversations,
	organizations_created, locations_created, customers_created, customers_updated,
	duration_seconds, records_per_second, error_message`

func scanRun(row pgx.Row) (domain.Run, error) {
	var run domain.Run
	var status string
	err := row.Scan(
		&run.ID, &status, &run.TriggeredBy, &run.Incremental, &run.Notes,
		&run.StartedAt, &run.CompletedAt,
		&run.Counters.Fetched, &run.Counters.Skipped, &run.Counters.Processed,
		&run.Counters.Created, &run.Counters.Updated,
		&run.Counters.ConversationsCreated, &run.Counters.BookingsCreated,
		&run.Counters.LeadsCreated, &run.Counters.Engaged,
		&run.Counters.OrganizationsCreated, &run.Counters.LocationsCreated,
		&run.Counters.CustomersCreated, &run.Counters.CustomersUpdated,
		&run.DurationSeconds, &run.RecordsPerSecond, &run.ErrorMessage,
	)
	if err != nil {
		return domain.Run{}, err
	}
	run.Status = domain.RunStatus(status)
	return run, nil
}

// CreateRun inserts a new running row, guarded so that at most one run can
// be in the running state at any instant. Returns ErrRunActive when the
// guard rejects the insert.
func (r *Repository) CreateRun(ctx context.Context, triggeredBy string, incremental bool, notes *string) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO import_runs (status, triggered_by, incremental, notes, started_at)
		SELECT 'running', $1, $2, $3, now()
		WHERE NOT EXISTS (SELECT 1 FROM import_runs WHERE status = 'running')
		RETURNING `+runColumns,
		triggeredBy, incremental, notes)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrRunActive
	}
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// ActiveRun returns the currently running run, or ErrNotFound when idle.
func (r *Repository) ActiveRun(ctx context.Context) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM import_runs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// UpdateProgress checkpoints cumulative counters after a page commit. It
// runs outside the page transaction so progress visibility may lag data
// state slightly but never lead it.
func (r *Repository) UpdateProgress(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE import_runs SET
			total_fetched = $2,
			total_skipped = $3,
			total_processed = $4,
			records_created = $5,
			records_updated = $6,
			conversations_created = $7,
			bookings_created = $8,
			leads_created = $9,
			engaged_conversations = $10,
			organizations_created = $11,
			locations_created = $12,
			customers_created = $13,
			customers_updated = $14
		WHERE id = $1`,
		runID,
		counters.Fetched, counters.Skipped, counters.Processed,
		counters.Created, counters.Updated,
		counters.ConversationsCreated, counters.BookingsCreated,
		counters.LeadsCreated, counters.Engaged,
		counters.OrganizationsCreated, counters.LocationsCreated,
		counters.CustomersCreated, counters.CustomersUpdated)
	return err
}

// CompleteRun finalizes a run as completed, computing duration and
// throughput from the persisted start time.
func (r *Repository) CompleteRun(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE import_runs SET
			status = 'completed',
			completed_at = now(),
			total_fetched = $2,
			total_skipped = $3,
			total_processed = $4,
			records_created = $5,
			records_updated = $6,
			conversations_created = $7,
			bookings_created = $8,
			leads_created = $9,
			engaged_conversations = $10,
			organizations_created = $11,
			locations_created = $12,
			customers_created = $13,
			customers_updated = $14,
			duration_seconds = EXTRACT(EPOCH FROM (now() - started_at)),
			records_per_second = $4 / GREATEST(EXTRACT(EPOCH FROM (now() - started_at)), 1)
		WHERE id = $1
		RETURNING `+runColumns,
		runID,
		counters.Fetched, counters.Skipped, counters.Processed,
		counters.Created, counters.Updated,
		counters.ConversationsCreated, counters.BookingsCreated,
		counters.LeadsCreated, counters.Engaged,
		counters.OrganizationsCreated, counters.LocationsCreated,
		counters.CustomersCreated, counters.CustomersUpdated)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// FailRun marks a run as failed with the given error message. Progress
// already checkpointed by UpdateProgress is left untouched.
func (r *Repository) FailRun(ctx context.Context, runID uuid.UUID, errorMessage string) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE import_runs SET
			status = 'failed',
			completed_at = now(),
			error_message = $2,
			duration_seconds = EXTRACT(EPOCH FROM (now() - started_at))
		WHERE id = $1
		RETURNING `+runColumns,
		runID, errorMessage)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// LastFullCompletion returns the completion time of the most recent
// completed full run, or nil when no full run has ever completed. This is
// the watermark used for incremental fetches.
func (r *Repository) LastFullCompletion(ctx context.Context) (*time.Time, error) {
	var completedAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT completed_at
		FROM import_runs
		WHERE status = 'completed' AND incremental = false
		ORDER BY completed_at DESC
		LIMIT 1`).Scan(&completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &completedAt, nil
}

func (r *Repository) GetRun(ctx context.Context, runID uuid.UUID) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM import_runs
		WHERE id = $1`, runID)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

func (r *Repository) ListRuns(ctx context.Context, limit, offset int) ([]domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return runs, nil
}

// EnsureAutomations inserts any missing catalog automations. The migration
// seeds them; this covers databases migrated before a new code was added.
func (r *Repository) EnsureAutomations(ctx context.Context) error {
	for _, code := range domain.AutomationCodes {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO automations (code, name)
			VALUES ($1, $2)
			ON CONFLICT (code) DO NOTHING`,
			code, domain.AutomationNames[code])
		if err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies database connectivity before a run starts.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
