package transform

import (
	"testing"
	"time"

	"chiro_dashboard_backend/internal/airtable"
)

func record(fields map[string]any) airtable.Record {
	return airtable.Record{ID: "recTEST001", Fields: fields}
}

func TestLeadCreatedExactMatchOnly(t *testing.T) {
	cases := map[string]bool{
		"Yes":    true,
		" Yes ":  true,
		"yes":    false,
		"YES":    false,
		"YES ":   false,
		"Maybe":  false,
		"":       false,
		"No":     false,
		"Yes sir": false,
	}

	for input, want := range cases {
		if got := leadCreated(input); got != want {
			t.Errorf("leadCreated(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestEngagedAcceptsThreeCasings(t *testing.T) {
	for _, input := range []string{"TRUE", "True", "true", " true "} {
		if !engaged(input) {
			t.Errorf("engaged(%q) = false, want true", input)
		}
	}

	for _, input := range []string{"truee", "1", "False", "FALSE", "", "tRue"} {
		if engaged(input) {
			t.Errorf("engaged(%q) = true, want false", input)
		}
	}
}

func TestNormalizeAutomationCode(t *testing.T) {
	cases := map[string]string{
		"WB":                  "WB",
		"WEB":                 "WB",
		"WEB?utm_source=x":    "WB",
		"WEB?UTM_MEDIUM=ANDY": "WB",
		"IB#fragment":         "IB",
		"CB&extra=1":          "CB",
		"TB ":                 "TB",
		"ZZ":                  "DB",
		"":                    "DB",
		"mybot":               "DB",
	}

	for input, want := range cases {
		if got := NormalizeAutomationCode(input); got != want {
			t.Errorf("NormalizeAutomationCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBookingExistsIsSubstringTest(t *testing.T) {
	tr := New("2025")

	if !tr.bookingExists("Appointment sometime in 2025, date TBD") {
		t.Error("expected marker substring to count as a booking")
	}
	if tr.bookingExists("No booking") {
		t.Error("expected no marker to mean no booking")
	}
	if tr.bookingExists("") {
		t.Error("expected empty field to mean no booking")
	}
}

func TestParseBookingAtLongForm(t *testing.T) {
	tr := New("2025")

	got := tr.parseBookingAt("Thu Oct 02 2025 18:30:00 GMT+0300")
	if got == nil {
		t.Fatal("expected long-form booking string to parse")
	}
	if got.Year() != 2025 || got.Month() != time.October || got.Day() != 2 {
		t.Errorf("parsed wrong date: %v", got)
	}
	if got.Hour() != 18 || got.Minute() != 30 {
		t.Errorf("parsed wrong time: %v", got)
	}
}

func TestParseBookingAtISOForms(t *testing.T) {
	tr := New("2025")

	got := tr.parseBookingAt("2025-09-15T10:00")
	if got == nil {
		t.Fatal("expected ISO booking string to parse")
	}
	if !got.Equal(time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("parsed %v, want 2025-09-15T10:00 UTC", got)
	}

	got = tr.parseBookingAt("booked for 2025-03-01")
	if got == nil {
		t.Fatal("expected bare date to parse")
	}
	if !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parsed %v, want 2025-03-01 UTC", got)
	}
}

func TestParseBookingAtUnparseableStillNil(t *testing.T) {
	tr := New("2025")

	if got := tr.parseBookingAt("call back in 2025 maybe"); got != nil {
		t.Errorf("expected nil for unparseable booking, got %v", got)
	}
	// Wrong-year whole-string parse must be dropped.
	if got := tr.parseBookingAt("2024-01-01"); got != nil {
		t.Errorf("expected nil for date without marker, got %v", got)
	}
}

func TestTransformScenarioBookedLead(t *testing.T) {
	tr := New("2025")

	out, err := tr.Transform(record(map[string]any{
		"Booking":                 "Thu Oct 02 2025 18:30:00 GMT+0300",
		"Lead Created":            "Yes",
		"Engaged in conversation": "TRUE",
		"Automation":              "WB",
	}))
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	if !out.BookingExists {
		t.Error("expected BookingExists=true")
	}
	if out.BookingAt == nil {
		t.Error("expected parsed BookingAt")
	}
	if !out.LeadCreated {
		t.Error("expected LeadCreated=true")
	}
	if !out.Engaged {
		t.Error("expected Engaged=true")
	}
	if out.AutomationCode != "WB" {
		t.Errorf("expected automation WB, got %q", out.AutomationCode)
	}
}

func TestTransformScenarioUnengagedWeb(t *testing.T) {
	tr := New("2025")

	out, err := tr.Transform(record(map[string]any{
		"Automation":              "WEB?utm_medium=andy",
		"Booking":                 "No booking",
		"Lead Created":            "No",
		"Engaged in conversation": "FALSE",
	}))
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	if out.AutomationCode != "WB" {
		t.Errorf("expected automation WB, got %q", out.AutomationCode)
	}
	if out.BookingExists {
		t.Error("expected BookingExists=false")
	}
	if out.BookingAt != nil {
		t.Error("expected nil BookingAt")
	}
	if out.LeadCreated || out.Engaged {
		t.Error("expected LeadCreated=false and Engaged=false")
	}
}

func TestTransformMissingOptionalFieldsAreNotRejected(t *testing.T) {
	tr := New("2025")

	out, err := tr.Transform(record(map[string]any{}))
	if err != nil {
		t.Fatalf("record with no optional fields must not be rejected: %v", err)
	}

	if out.Name != nil || out.Email != nil || out.Phone != nil || out.Clinic != nil {
		t.Error("expected absent optional fields to map to nil")
	}
	if out.AutomationCode != "DB" {
		t.Errorf("expected default automation, got %q", out.AutomationCode)
	}
	if out.CustomerKey() != "no-user-id-recTEST001" {
		t.Errorf("expected synthetic customer key, got %q", out.CustomerKey())
	}
}

func TestTransformStats(t *testing.T) {
	tr := New("2025")

	inputs := []map[string]any{
		{"Booking": "2025-09-15T10:00", "Lead Created": "Yes", "Engaged in conversation": "true", "Automation": "WB"},
		{"Booking": "none", "Lead Created": "no", "Engaged in conversation": "false", "Automation": "ZZ"},
	}
	for _, fields := range inputs {
		if _, err := tr.Transform(record(fields)); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}

	stats := tr.Stats()
	if stats.Processed != 2 {
		t.Errorf("Processed = %d, want 2", stats.Processed)
	}
	if stats.Bookings != 1 || stats.Leads != 1 || stats.Engaged != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AutomationCodes["WB"] != 1 || stats.AutomationCodes["DB"] != 1 {
		t.Errorf("unexpected automation breakdown: %v", stats.AutomationCodes)
	}

	tr.Reset()
	if tr.Stats().Processed != 0 {
		t.Error("expected Reset to clear counters")
	}
}
