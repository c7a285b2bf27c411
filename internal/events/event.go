// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"chiro_dashboard_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Import Domain Events
// =============================================================================

// ImportRunCompleted is published when an import run reaches the completed state.
type ImportRunCompleted struct {
	BaseEvent
	RunID           uuid.UUID `json:"runId"`
	TriggeredBy     string    `json:"triggeredBy"`
	Incremental     bool      `json:"incremental"`
	TotalFetched    int       `json:"totalFetched"`
	TotalProcessed  int       `json:"totalProcessed"`
	BookingsCreated int       `json:"bookingsCreated"`
	LeadsCreated    int       `json:"leadsCreated"`
	Engaged         int       `json:"engaged"`
	DurationSeconds float64   `json:"durationSeconds"`
}

func (e ImportRunCompleted) EventName() string { return "import.run.completed" }

// ImportRunFailed is published when an import run terminates with an error.
// Pages committed before the failure remain in the destination store.
type ImportRunFailed struct {
	BaseEvent
	RunID          uuid.UUID `json:"runId"`
	TriggeredBy    string    `json:"triggeredBy"`
	Incremental    bool      `json:"incremental"`
	TotalProcessed int       `json:"totalProcessed"`
	ErrorMessage   string    `json:"errorMessage"`
}

func (e ImportRunFailed) EventName() string { return "import.run.failed" }
