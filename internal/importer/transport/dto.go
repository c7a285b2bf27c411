// Package transport defines the request and response shapes of the import API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"chiro_dashboard_backend/internal/importer/domain"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// TriggerImportRequest is the request body for starting an import run.
type TriggerImportRequest struct {
	Incremental bool    `json:"incremental"`
	Notes       *string `json:"notes" validate:"omitempty,max=1000"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// RunCountersResponse exposes the cumulative counters of a run.
type RunCountersResponse struct {
	Fetched              int `json:"fetched"`
	Processed            int `json:"processed"`
	Skipped              int `json:"skipped"`
	Created              int `json:"created"`
	Updated              int `json:"updated"`
	ConversationsCreated int `json:"conversationsCreated"`
	BookingsCreated      int `json:"bookingsCreated"`
	LeadsCreated         int `json:"leadsCreated"`
	Engaged              int `json:"engaged"`
	OrganizationsCreated int `json:"organizationsCreated"`
	LocationsCreated     int `json:"locationsCreated"`
	CustomersCreated     int `json:"customersCreated"`
	CustomersUpdated     int `json:"customersUpdated"`
}

// RunResponse is the API representation of one import run.
type RunResponse struct {
	ID               uuid.UUID           `json:"id"`
	Status           string              `json:"status"`
	TriggeredBy      string              `json:"triggeredBy"`
	Incremental      bool                `json:"incremental"`
	Notes            *string             `json:"notes,omitempty"`
	StartedAt        time.Time           `json:"startedAt"`
	CompletedAt      *time.Time          `json:"completedAt,omitempty"`
	Counters         RunCountersResponse `json:"counters"`
	DurationSeconds  *float64            `json:"durationSeconds,omitempty"`
	RecordsPerSecond *float64            `json:"recordsPerSecond,omitempty"`
	ErrorMessage     *string             `json:"errorMessage,omitempty"`
}

// StatusResponse reports the orchestrator's exclusivity state plus the
// last finished run and upcoming scheduled fire times.
type StatusResponse struct {
	IsRunning         bool         `json:"isRunning"`
	CurrentRunID      *uuid.UUID   `json:"currentRunId,omitempty"`
	LastRun           *RunResponse `json:"lastRun,omitempty"`
	NextScheduledRuns []time.Time  `json:"nextScheduledRuns,omitempty"`
}

// RunListResponse wraps a page of run history.
type RunListResponse struct {
	Runs   []RunResponse `json:"runs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// FromRun maps a domain run to its API shape.
func FromRun(run domain.Run) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Status:      string(run.Status),
		TriggeredBy: run.TriggeredBy,
		Incremental: run.Incremental,
		Notes:       run.Notes,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Counters: RunCountersResponse{
			Fetched:              run.Counters.Fetched,
			Processed:            run.Counters.Processed,
			Skipped:              run.Counters.Skipped,
			Created:              run.Counters.Created,
			Updated:              run.Counters.Updated,
			ConversationsCreated: run.Counters.ConversationsCreated,
			BookingsCreated:      run.Counters.BookingsCreated,
			LeadsCreated:         run.Counters.LeadsCreated,
			Engaged:              run.Counters.Engaged,
			OrganizationsCreated: run.Counters.OrganizationsCreated,
			LocationsCreated:     run.Counters.LocationsCreated,
			CustomersCreated:     run.Counters.CustomersCreated,
			CustomersUpdated:     run.Counters.CustomersUpdated,
		},
		DurationSeconds:  run.DurationSeconds,
		RecordsPerSecond: run.RecordsPerSecond,
		ErrorMessage:     run.ErrorMessage,
	}
}

// FromRuns maps a slice of domain runs.
func FromRuns(runs []domain.Run) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}
