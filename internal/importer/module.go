// Package importer provides the record import domain module: fetch,
// transform, upsert, and run bookkeeping.
package importer

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chiro_dashboard_backend/internal/airtable"
	apphttp "chiro_dashboard_backend/internal/http"
	"chiro_dashboard_backend/internal/importer/handler"
	"chiro_dashboard_backend/internal/importer/repository"
	"chiro_dashboard_backend/internal/importer/service"
	"chiro_dashboard_backend/internal/importer/transform"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/events"
	"chiro_dashboard_backend/platform/logger"
	"chiro_dashboard_backend/platform/validator"
)

// Module represents the importer domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// ModuleConfig combines the config interfaces the importer needs.
type ModuleConfig interface {
	config.AirtableConfig
	config.ImportConfig
}

// NewModule creates the importer module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, cfg ModuleConfig, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	source := service.AirtableSource(airtable.NewClient(cfg))
	transformer := transform.New(cfg.GetBookingYearMarker())
	svc := service.New(source, repo, transformer, cfg.GetExpectedTotals(), eventBus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "importer"
}

// Service returns the orchestrator for external callers (scheduler, startup).
func (m *Module) Service() *service.Service {
	return m.service
}

// SetScheduleInfo injects the next-fire-time calculator for the status endpoint.
func (m *Module) SetScheduleInfo(nextRuns func(time.Time) []time.Time) {
	m.handler.SetScheduleInfo(nextRuns)
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/import"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
