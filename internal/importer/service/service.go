// Package service orchestrates import runs: mutual exclusion, page-by-page
// transform and upsert, crash-safe progress checkpoints, and terminal
// state handling.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chiro_dashboard_backend/internal/airtable"
	"chiro_dashboard_backend/internal/events"
	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/internal/importer/repository"
	"chiro_dashboard_backend/internal/importer/transform"
	"chiro_dashboard_backend/platform/apperr"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/logger"
)

// PageIterator yields pages of raw source records.
type PageIterator interface {
	Next(ctx context.Context) bool
	Page() airtable.Page
	Err() error
}

// Source is the paginated record source consumed by a run.
type Source interface {
	Ping(ctx context.Context) error
	Fetch(opts airtable.FetchOptions) PageIterator
}

// Store is the persistence surface a run needs: run lifecycle rows plus
// the page upsert.
type Store interface {
	CreateRun(ctx context.Context, triggeredBy string, incremental bool, notes *string) (domain.Run, error)
	UpdateProgress(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) error
	CompleteRun(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) (domain.Run, error)
	FailRun(ctx context.Context, runID uuid.UUID, errorMessage string) (domain.Run, error)
	LastFullCompletion(ctx context.Context) (*time.Time, error)
	ActiveRun(ctx context.Context) (domain.Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (domain.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]domain.Run, error)
	UpsertPage(ctx context.Context, records []domain.CanonicalRecord) (domain.BatchCounters, error)
	EnsureAutomations(ctx context.Context) error
	Ping(ctx context.Context) error
}

// AirtableSource adapts the concrete airtable client to the Source interface.
func AirtableSource(c *airtable.Client) Source {
	return airtableSource{c: c}
}

type airtableSource struct {
	c *airtable.Client
}

func (s airtableSource) Ping(ctx context.Context) error { return s.c.Ping(ctx) }

func (s airtableSource) Fetch(opts airtable.FetchOptions) PageIterator {
	return s.c.Fetch(opts)
}

// TriggerOptions describes one requested run.
type TriggerOptions struct {
	TriggeredBy string
	Incremental bool
	Notes       *string
}

// Status is a snapshot of the orchestrator's exclusivity state.
type Status struct {
	IsRunning    bool
	CurrentRunID *uuid.UUID
}

// Service owns the single is-a-run-active flag and the current run id.
// Construct one instance per process; all triggers (HTTP, scheduler,
// startup) funnel through the same TriggerImport entry point.
type Service struct {
	source      Source
	store       Store
	transformer *transform.Transformer
	expected    config.ExpectedTotals
	bus         events.Bus
	log         *logger.Logger

	mu           sync.Mutex
	running      bool
	currentRunID *uuid.UUID
}

func New(source Source, store Store, transformer *transform.Transformer, expected config.ExpectedTotals, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		source:      source,
		store:       store,
		transformer: transformer,
		expected:    expected,
		bus:         bus,
		log:         log,
	}
}

// TriggerImport executes one import run synchronously and returns the
// finalized run row. A trigger while another run is active fails
// immediately with a conflict; it is never queued.
func (s *Service) TriggerImport(ctx context.Context, opts TriggerOptions) (domain.Run, error) {
	if err := s.acquire(); err != nil {
		return domain.Run{}, err
	}
	defer s.release()

	// Incremental needs a watermark; without any completed full run the
	// request silently widens to a full import so history is never skipped.
	incremental := opts.Incremental
	var since *time.Time
	if incremental {
		watermark, err := s.store.LastFullCompletion(ctx)
		if err != nil {
			return domain.Run{}, fmt.Errorf("resolve incremental watermark: %w", err)
		}
		if watermark == nil {
			s.log.Info("no completed full run found, forcing full import")
			incremental = false
		} else {
			since = watermark
		}
	}

	run, err := s.store.CreateRun(ctx, opts.TriggeredBy, incremental, opts.Notes)
	if err != nil {
		// The database-level guard backs the in-process flag: it also
		// rejects when another process holds a running row.
		if errors.Is(err, repository.ErrRunActive) {
			return domain.Run{}, apperr.Wrap(apperr.KindConflict, "an import run is already in progress", err)
		}
		return domain.Run{}, fmt.Errorf("create import run: %w", err)
	}
	s.setCurrentRun(run.ID)
	defer s.clearCurrentRun()

	log := s.log.WithRun(run.ID.String())
	log.Info("import run started",
		"triggered_by", opts.TriggeredBy,
		"incremental", incremental,
	)

	finished, err := s.execute(ctx, log, run, since)
	if err != nil {
		failed, failErr := s.store.FailRun(ctx, run.ID, err.Error())
		if failErr != nil {
			log.DatabaseError("fail import run", failErr)
		} else {
			s.publishFailed(ctx, failed)
		}
		log.RunFinished(string(domain.RunStatusFailed), finished.Counters.Processed, time.Since(run.StartedAt))
		return failed, fmt.Errorf("import run %s: %w", run.ID, err)
	}

	s.publishCompleted(ctx, finished)
	log.RunFinished(string(domain.RunStatusCompleted), finished.Counters.Processed, time.Since(run.StartedAt))
	return finished, nil
}

// execute drives the page loop. On error the caller finalizes the run as
// failed; pages already committed stay in the destination store.
func (s *Service) execute(ctx context.Context, log *logger.Logger, run domain.Run, since *time.Time) (domain.Run, error) {
	if err := s.store.Ping(ctx); err != nil {
		return run, fmt.Errorf("database connection check: %w", err)
	}
	if err := s.source.Ping(ctx); err != nil {
		return run, fmt.Errorf("source connection check: %w", err)
	}
	if err := s.store.EnsureAutomations(ctx); err != nil {
		return run, fmt.Errorf("ensure automation catalog: %w", err)
	}

	s.transformer.Reset()

	var counters domain.RunCounters
	batch := 0

	it := s.source.Fetch(airtable.FetchOptions{Since: since})
	for it.Next(ctx) {
		page := it.Page()
		batch++

		canonical := make([]domain.CanonicalRecord, 0, len(page.Records))
		for _, raw := range page.Records {
			rec, err := s.transformer.Transform(raw)
			if err != nil {
				counters.Skipped++
				log.Warn("record rejected", "source_id", raw.ID, "error", err.Error())
				continue
			}
			canonical = append(canonical, rec)
		}

		batchCounters, err := s.store.UpsertPage(ctx, canonical)
		if err != nil {
			run.Counters = counters
			return run, fmt.Errorf("batch %d: %w", batch, err)
		}

		counters.Fetched = page.Fetched
		counters.Add(batchCounters)

		// Checkpoint after every committed page so a crash mid-run loses at
		// most the page in flight.
		if err := s.store.UpdateProgress(ctx, run.ID, counters); err != nil {
			run.Counters = counters
			return run, fmt.Errorf("checkpoint batch %d: %w", batch, err)
		}

		log.BatchProgress(batch, counters.Fetched, counters.Processed)
	}
	if err := it.Err(); err != nil {
		run.Counters = counters
		return run, fmt.Errorf("source fetch: %w", err)
	}

	finished, err := s.store.CompleteRun(ctx, run.ID, counters)
	if err != nil {
		run.Counters = counters
		return run, fmt.Errorf("finalize run: %w", err)
	}

	s.reportValidation(log, finished.Incremental)

	return finished, nil
}

// reportValidation compares transformer statistics against the configured
// baseline totals. Mismatches are reported for operators but never change
// the run's terminal status. Incremental runs only see a slice of the
// source, so a mismatch there is expected.
func (s *Service) reportValidation(log *logger.Logger, incremental bool) {
	stats := s.transformer.Stats()
	log.Info("import validation",
		"incremental", incremental,
		"records", fmt.Sprintf("%d/%d", stats.Processed, s.expected.Records),
		"bookings", fmt.Sprintf("%d/%d", stats.Bookings, s.expected.Bookings),
		"leads", fmt.Sprintf("%d/%d", stats.Leads, s.expected.Leads),
		"engaged", fmt.Sprintf("%d/%d", stats.Engaged, s.expected.Engaged),
		"match", baselineMatch(stats, s.expected),
	)
}

func baselineMatch(stats transform.Stats, expected config.ExpectedTotals) bool {
	return stats.Processed == expected.Records &&
		stats.Bookings == expected.Bookings &&
		stats.Leads == expected.Leads &&
		stats.Engaged == expected.Engaged
}

// Status reports whether a run is active and which one. The in-process
// flag answers for this process; the store's running row answers for a
// run held by the other process (api and scheduler share the database).
func (s *Service) Status(ctx context.Context) Status {
	s.mu.Lock()
	running := s.running
	var id *uuid.UUID
	if s.currentRunID != nil {
		v := *s.currentRunID
		id = &v
	}
	s.mu.Unlock()

	if running {
		return Status{IsRunning: true, CurrentRunID: id}
	}

	active, err := s.store.ActiveRun(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.DatabaseError("read active run", err)
		}
		return Status{}
	}
	runID := active.ID
	return Status{IsRunning: true, CurrentRunID: &runID}
}

// GetRun returns one run by id.
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, apperr.Wrap(apperr.KindNotFound, "import run not found", err)
	}
	return run, nil
}

// LastRun returns the most recent terminal run, or nil when none exists.
func (s *Service) LastRun(ctx context.Context) (*domain.Run, error) {
	runs, err := s.store.ListRuns(ctx, 10, 0)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Status.IsTerminal() {
			r := run
			return &r, nil
		}
	}
	return nil, nil
}

// History returns recent runs, newest first.
func (s *Service) History(ctx context.Context, limit, offset int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListRuns(ctx, limit, offset)
}

func (s *Service) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		conflict := apperr.Conflict("an import run is already in progress")
		if s.currentRunID != nil {
			conflict = conflict.WithDetails(map[string]string{"currentRunId": s.currentRunID.String()})
		}
		return conflict
	}
	s.running = true
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.currentRunID = nil
	s.mu.Unlock()
}

func (s *Service) setCurrentRun(id uuid.UUID) {
	s.mu.Lock()
	s.currentRunID = &id
	s.mu.Unlock()
}

func (s *Service) clearCurrentRun() {
	s.mu.Lock()
	s.currentRunID = nil
	s.mu.Unlock()
}

func (s *Service) publishCompleted(ctx context.Context, run domain.Run) {
	var duration float64
	if run.DurationSeconds != nil {
		duration = *run.DurationSeconds
	}
	s.bus.Publish(ctx, events.ImportRunCompleted{
		BaseEvent:       events.NewBaseEvent(),
		RunID:           run.ID,
		TriggeredBy:     run.TriggeredBy,
		Incremental:     run.Incremental,
		TotalFetched:    run.Counters.Fetched,
		TotalProcessed:  run.Counters.Processed,
		BookingsCreated: run.Counters.BookingsCreated,
		LeadsCreated:    run.Counters.LeadsCreated,
		Engaged:         run.Counters.Engaged,
		DurationSeconds: duration,
	})
}

func (s *Service) publishFailed(ctx context.Context, run domain.Run) {
	message := ""
	if run.ErrorMessage != nil {
		message = *run.ErrorMessage
	}
	s.bus.Publish(ctx, events.ImportRunFailed{
		BaseEvent:      events.NewBaseEvent(),
		RunID:          run.ID,
		TriggeredBy:    run.TriggeredBy,
		Incremental:    run.Incremental,
		TotalProcessed: run.Counters.Processed,
		ErrorMessage:   message,
	})
}
