// Package email delivers operator notification emails over SMTP.
package email

import (
	"context"

	"chiro_dashboard_backend/platform/config"
)

// Sender delivers import outcome emails to the operator.
type Sender interface {
	SendImportCompleted(ctx context.Context, toEmail string, data ImportCompletedData) error
	SendImportFailed(ctx context.Context, toEmail string, data ImportFailedData) error
}

// ImportCompletedData carries the summary rendered into the completion email.
type ImportCompletedData struct {
	RunID           string
	TriggeredBy     string
	Incremental     bool
	TotalFetched    int
	TotalProcessed  int
	BookingsCreated int
	LeadsCreated    int
	Engaged         int
	DurationSeconds float64
}

// ImportFailedData carries the details rendered into the failure email.
type ImportFailedData struct {
	RunID          string
	TriggeredBy    string
	Incremental    bool
	TotalProcessed int
	ErrorMessage   string
}

// NewSender builds the configured sender. Without SMTP settings a no-op
// sender is returned so the rest of the system never branches on email
// availability.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

// NopSender silently discards all emails.
type NopSender struct{}

func (NopSender) SendImportCompleted(ctx context.Context, toEmail string, data ImportCompletedData) error {
	return nil
}

func (NopSender) SendImportFailed(ctx context.Context, toEmail string, data ImportFailedData) error {
	return nil
}
