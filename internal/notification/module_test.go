package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"chiro_dashboard_backend/internal/email"
	"chiro_dashboard_backend/internal/events"
	"chiro_dashboard_backend/platform/logger"
)

type recordingSender struct {
	completed []email.ImportCompletedData
	failed    []email.ImportFailedData
}

func (s *recordingSender) SendImportCompleted(ctx context.Context, toEmail string, data email.ImportCompletedData) error {
	s.completed = append(s.completed, data)
	return nil
}

func (s *recordingSender) SendImportFailed(ctx context.Context, toEmail string, data email.ImportFailedData) error {
	s.failed = append(s.failed, data)
	return nil
}

type staticEmailConfig struct{ operator string }

func (c staticEmailConfig) GetEmailEnabled() bool       { return true }
func (c staticEmailConfig) GetSMTPHost() string         { return "localhost" }
func (c staticEmailConfig) GetSMTPPort() int            { return 1025 }
func (c staticEmailConfig) GetSMTPUsername() string     { return "" }
func (c staticEmailConfig) GetSMTPPassword() string     { return "" }
func (c staticEmailConfig) GetEmailFromName() string    { return "Dashboard" }
func (c staticEmailConfig) GetEmailFromAddress() string { return "noreply@example.com" }
func (c staticEmailConfig) GetOperatorEmail() string    { return c.operator }

func TestRunCompletedEventSendsEmail(t *testing.T) {
	sender := &recordingSender{}
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)

	module := New(sender, staticEmailConfig{operator: "ops@example.com"}, log)
	module.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.ImportRunCompleted{
		BaseEvent:       events.NewBaseEvent(),
		RunID:           uuid.New(),
		TriggeredBy:     "scheduler",
		Incremental:     true,
		TotalFetched:    100,
		TotalProcessed:  100,
		BookingsCreated: 7,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if len(sender.completed) != 1 {
		t.Fatalf("expected 1 completion email, got %d", len(sender.completed))
	}
	if sender.completed[0].BookingsCreated != 7 {
		t.Errorf("bookings in email = %d, want 7", sender.completed[0].BookingsCreated)
	}
}

func TestRunFailedEventSendsEmail(t *testing.T) {
	sender := &recordingSender{}
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)

	module := New(sender, staticEmailConfig{operator: "ops@example.com"}, log)
	module.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.ImportRunFailed{
		BaseEvent:    events.NewBaseEvent(),
		RunID:        uuid.New(),
		TriggeredBy:  "manual",
		ErrorMessage: "source fetch: upstream 503",
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if len(sender.failed) != 1 {
		t.Fatalf("expected 1 failure email, got %d", len(sender.failed))
	}
}

func TestNoOperatorConfiguredSendsNothing(t *testing.T) {
	sender := &recordingSender{}
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)

	module := New(sender, staticEmailConfig{operator: ""}, log)
	module.RegisterHandlers(bus)

	_ = bus.PublishSync(context.Background(), events.ImportRunCompleted{
		BaseEvent: events.NewBaseEvent(),
		RunID:     uuid.New(),
	})

	if len(sender.completed) != 0 {
		t.Errorf("expected no email without operator address, got %d", len(sender.completed))
	}
}
