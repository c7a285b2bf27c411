package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the closed set of import run states.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Valid reports whether the status is one of the known states.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// Trigger sources recorded on import runs.
const (
	TriggeredByManual    = "manual"
	TriggeredByScheduler = "scheduler"
	TriggeredByStartup   = "startup"
)

// BatchCounters are the per-page counters computed inside one page
// transaction. Entity creation counters reflect rows actually inserted,
// so re-running the same page yields zeros for them.
type BatchCounters struct {
	Processed            int
	Created              int
	Updated              int
	ConversationsCreated int
	BookingsCreated      int
	LeadsCreated         int
	Engaged              int
	OrganizationsCreated int
	LocationsCreated     int
	CustomersCreated     int
	CustomersUpdated     int
}

// Add accumulates another batch into the receiver.
func (c *BatchCounters) Add(other BatchCounters) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Updated += other.Updated
	c.ConversationsCreated += other.ConversationsCreated
	c.BookingsCreated += other.BookingsCreated
	c.LeadsCreated += other.LeadsCreated
	c.Engaged += other.Engaged
	c.OrganizationsCreated += other.OrganizationsCreated
	c.LocationsCreated += other.LocationsCreated
	c.CustomersCreated += other.CustomersCreated
	c.CustomersUpdated += other.CustomersUpdated
}

// RunCounters are the cumulative counters of one run, persisted to the
// import_runs row after every page commit.
type RunCounters struct {
	Fetched int
	Skipped int
	BatchCounters
}

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID               uuid.UUID
	Status           RunStatus
	TriggeredBy      string
	Incremental      bool
	Notes            *string
	StartedAt        time.Time
	CompletedAt      *time.Time
	Counters         RunCounters
	DurationSeconds  *float64
	RecordsPerSecond *float64
	ErrorMessage     *string
}
