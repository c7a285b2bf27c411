// Package notification subscribes to import domain events and notifies the
// operator by email. Domain modules publish events and never talk to email
// providers directly.
package notification

import (
	"context"

	"chiro_dashboard_backend/internal/email"
	"chiro_dashboard_backend/internal/events"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/logger"
)

// Module holds the notification event handlers.
type Module struct {
	sender        email.Sender
	operatorEmail string
	log           *logger.Logger
}

func New(sender email.Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{
		sender:        sender,
		operatorEmail: cfg.GetOperatorEmail(),
		log:           log,
	}
}

// RegisterHandlers subscribes the module to the import lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe("import.run.completed", events.HandlerFunc(m.handleRunCompleted))
	bus.Subscribe("import.run.failed", events.HandlerFunc(m.handleRunFailed))
}

func (m *Module) handleRunCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(events.ImportRunCompleted)
	if !ok {
		return nil
	}
	if m.operatorEmail == "" {
		return nil
	}

	err := m.sender.SendImportCompleted(ctx, m.operatorEmail, email.ImportCompletedData{
		RunID:           completed.RunID.String(),
		TriggeredBy:     completed.TriggeredBy,
		Incremental:     completed.Incremental,
		TotalFetched:    completed.TotalFetched,
		TotalProcessed:  completed.TotalProcessed,
		BookingsCreated: completed.BookingsCreated,
		LeadsCreated:    completed.LeadsCreated,
		Engaged:         completed.Engaged,
		DurationSeconds: completed.DurationSeconds,
	})
	if err != nil {
		m.log.Error("failed to send completion email", "run_id", completed.RunID.String(), "error", err)
	}
	return err
}

func (m *Module) handleRunFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(events.ImportRunFailed)
	if !ok {
		return nil
	}
	if m.operatorEmail == "" {
		return nil
	}

	err := m.sender.SendImportFailed(ctx, m.operatorEmail, email.ImportFailedData{
		RunID:          failed.RunID.String(),
		TriggeredBy:    failed.TriggeredBy,
		Incremental:    failed.Incremental,
		TotalProcessed: failed.TotalProcessed,
		ErrorMessage:   failed.ErrorMessage,
	})
	if err != nil {
		m.log.Error("failed to send failure email", "run_id", failed.RunID.String(), "error", err)
	}
	return err
}
