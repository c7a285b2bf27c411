package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chiro_dashboard_backend/internal/airtable"
	"chiro_dashboard_backend/internal/events"
	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/internal/importer/repository"
	"chiro_dashboard_backend/internal/importer/service"
	"chiro_dashboard_backend/internal/importer/transform"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/logger"
	"chiro_dashboard_backend/platform/validator"
)

type stubIterator struct{}

func (stubIterator) Next(ctx context.Context) bool { return false }
func (stubIterator) Page() airtable.Page           { return airtable.Page{} }
func (stubIterator) Err() error                    { return nil }

type stubSource struct{}

func (stubSource) Ping(ctx context.Context) error                     { return nil }
func (stubSource) Fetch(_ airtable.FetchOptions) service.PageIterator { return stubIterator{} }

type stubStore struct {
	lastFull    *time.Time
	incremental *bool
	notes       *string
}

func (s *stubStore) CreateRun(ctx context.Context, triggeredBy string, incremental bool, notes *string) (domain.Run, error) {
	s.incremental = &incremental
	s.notes = notes
	return domain.Run{ID: uuid.New(), Status: domain.RunStatusRunning, StartedAt: time.Now()}, nil
}

func (s *stubStore) UpdateProgress(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) error {
	return nil
}

func (s *stubStore) CompleteRun(ctx context.Context, runID uuid.UUID, counters domain.RunCounters) (domain.Run, error) {
	return domain.Run{ID: runID, Status: domain.RunStatusCompleted, StartedAt: time.Now(), Counters: counters}, nil
}

func (s *stubStore) FailRun(ctx context.Context, runID uuid.UUID, errorMessage string) (domain.Run, error) {
	return domain.Run{ID: runID, Status: domain.RunStatusFailed, ErrorMessage: &errorMessage}, nil
}

func (s *stubStore) LastFullCompletion(ctx context.Context) (*time.Time, error) {
	return s.lastFull, nil
}

func (s *stubStore) ActiveRun(ctx context.Context) (domain.Run, error) {
	return domain.Run{}, repository.ErrNotFound
}

func (s *stubStore) GetRun(ctx context.Context, runID uuid.UUID) (domain.Run, error) {
	return domain.Run{ID: runID, Status: domain.RunStatusCompleted}, nil
}

func (s *stubStore) ListRuns(ctx context.Context, limit, offset int) ([]domain.Run, error) {
	return nil, nil
}

func (s *stubStore) UpsertPage(ctx context.Context, records []domain.CanonicalRecord) (domain.BatchCounters, error) {
	return domain.BatchCounters{Processed: len(records)}, nil
}

func (s *stubStore) EnsureAutomations(ctx context.Context) error { return nil }
func (s *stubStore) Ping(ctx context.Context) error              { return nil }

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, event events.Event)           {}
func (nopBus) PublishSync(ctx context.Context, event events.Event) error { return nil }
func (nopBus) Subscribe(eventName string, handler events.Handler)        {}

func newTestEngine(store *stubStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(stubSource{}, store, transform.New("2025"), config.ExpectedTotals{}, nopBus{}, logger.New("development"))
	h := New(svc, validator.New())
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1/import"))
	return engine
}

func TestTriggerBindsChunkedBody(t *testing.T) {
	watermark := time.Now().Add(-time.Hour)
	store := &stubStore{lastFull: &watermark}
	engine := newTestEngine(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/trigger",
		strings.NewReader(`{"incremental":true,"notes":"resync after source cleanup"}`))
	req.Header.Set("Content-Type", "application/json")
	// A chunked request carries no Content-Length header.
	req.ContentLength = -1

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if store.incremental == nil || !*store.incremental {
		t.Error("expected the chunked body's incremental flag to be bound")
	}
	if store.notes == nil || *store.notes != "resync after source cleanup" {
		t.Errorf("notes = %v, want the chunked body's notes", store.notes)
	}
}

func TestTriggerAcceptsEmptyBody(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/trigger", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if store.incremental == nil || *store.incremental {
		t.Error("expected an empty trigger to default to a full run")
	}
}
