package config

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app?sslmode=disable")
	t.Setenv("AIRTABLE_API_KEY", "key123")
	t.Setenv("AIRTABLE_BASE_ID", "appBASE")
	t.Setenv("AIRTABLE_TABLE_ID", "tblTABLE")
	// Keep email out of the required set unless a test opts in.
	t.Setenv("SMTP_HOST", "")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.AirtablePageSize != 100 {
		t.Errorf("AirtablePageSize = %d, want 100", cfg.AirtablePageSize)
	}
	if cfg.BookingYearMarker != "2025" {
		t.Errorf("BookingYearMarker = %q, want 2025", cfg.BookingYearMarker)
	}
	if cfg.MorningSchedule != "0 6 * * *" || cfg.EveningSchedule != "0 18 * * *" {
		t.Errorf("schedules = %q / %q", cfg.MorningSchedule, cfg.EveningSchedule)
	}
	if cfg.ExpectedTotals.Records != 20077 || cfg.ExpectedTotals.Bookings != 3122 {
		t.Errorf("unexpected totals %+v", cfg.ExpectedTotals)
	}
	if cfg.EmailEnabled {
		t.Error("email must stay disabled without an SMTP host")
	}
}

func TestLoadRequiresConnectionSettings(t *testing.T) {
	cases := []struct {
		missing string
	}{
		{"DATABASE_URL"},
		{"AIRTABLE_API_KEY"},
		{"AIRTABLE_BASE_ID"},
		{"AIRTABLE_TABLE_ID"},
	}

	for _, tc := range cases {
		t.Run(tc.missing, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.missing, "")

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s is empty", tc.missing)
			} else if !strings.Contains(err.Error(), tc.missing) {
				t.Errorf("error %q does not name %s", err, tc.missing)
			}
		})
	}
}

func TestLoadRejectsMalformedYearMarker(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOOKING_YEAR_MARKER", "25")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for 2-digit year marker")
	}
}

func TestLoadWildcardOriginEnablesAllowAll(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, *")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.CORSAllowAll {
		t.Error("wildcard origin must enable allow-all")
	}
}

func TestLoadEmailRequiresSenderAndOperator(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM_ADDRESS", "")
	t.Setenv("OPERATOR_EMAIL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when email is enabled without a from address")
	}

	t.Setenv("EMAIL_FROM_ADDRESS", "imports@example.com")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when email is enabled without an operator address")
	}

	t.Setenv("OPERATOR_EMAIL", "ops@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.EmailEnabled {
		t.Error("email should be enabled once SMTP host and addresses are set")
	}
}

func TestGetPositiveIntIgnoresInvalidValues(t *testing.T) {
	t.Setenv("TEST_POSITIVE_INT", "-5")
	if got := getPositiveInt("TEST_POSITIVE_INT", 7); got != 7 {
		t.Errorf("negative value: got %d, want fallback 7", got)
	}

	t.Setenv("TEST_POSITIVE_INT", "abc")
	if got := getPositiveInt("TEST_POSITIVE_INT", 7); got != 7 {
		t.Errorf("non-numeric value: got %d, want fallback 7", got)
	}

	t.Setenv("TEST_POSITIVE_INT", "12")
	if got := getPositiveInt("TEST_POSITIVE_INT", 7); got != 12 {
		t.Errorf("valid value: got %d, want 12", got)
	}
}
