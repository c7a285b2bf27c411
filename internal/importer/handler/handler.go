// Package handler exposes the import pipeline over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/internal/importer/service"
	"chiro_dashboard_backend/internal/importer/transport"
	"chiro_dashboard_backend/platform/httpkit"
	"chiro_dashboard_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for import runs.
type Handler struct {
	svc      *service.Service
	val      *validator.Validator
	nextRuns func(time.Time) []time.Time
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SetScheduleInfo injects the next-fire-time calculator so the status
// endpoint can show upcoming scheduled runs.
func (h *Handler) SetScheduleInfo(nextRuns func(time.Time) []time.Time) {
	h.nextRuns = nextRuns
}

// RegisterRoutes registers the import routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/trigger", h.Trigger)
	rg.GET("/status", h.Status)
	rg.GET("/runs", h.ListRuns)
	rg.GET("/runs/:id", h.GetRun)
}

// Trigger starts an import run synchronously and returns the finished run.
// A concurrent trigger gets a conflict response immediately; it is never
// queued.
func (h *Handler) Trigger(c *gin.Context) {
	var req transport.TriggerImportRequest
	// ContentLength -1 means a chunked body; only a declared-empty body
	// skips binding.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	run, err := h.svc.TriggerImport(c.Request.Context(), service.TriggerOptions{
		TriggeredBy: domain.TriggeredByManual,
		Incremental: req.Incremental,
		Notes:       req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromRun(run))
}

// Status reports whether a run is active, the last finished run, and the
// upcoming scheduled fire times.
func (h *Handler) Status(c *gin.Context) {
	status := h.svc.Status(c.Request.Context())

	resp := transport.StatusResponse{
		IsRunning:    status.IsRunning,
		CurrentRunID: status.CurrentRunID,
	}

	if last, err := h.svc.LastRun(c.Request.Context()); err == nil && last != nil {
		run := transport.FromRun(*last)
		resp.LastRun = &run
	}

	if h.nextRuns != nil {
		resp.NextScheduledRuns = h.nextRuns(time.Now())
	}

	httpkit.OK(c, resp)
}

// ListRuns returns recent runs, newest first.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	runs, err := h.svc.History(c.Request.Context(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RunListResponse{
		Runs:   transport.FromRuns(runs),
		Limit:  limit,
		Offset: offset,
	})
}

// GetRun returns one run by id.
func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	run, err := h.svc.GetRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromRun(run))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
