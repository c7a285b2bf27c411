// Package transform converts raw source records into canonical records.
// The rules here are the business contract of the whole pipeline: booking,
// lead and engagement classification must match the source data exactly,
// since run validation compares their counts against known totals.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chiro_dashboard_backend/internal/airtable"
	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/platform/phone"
)

// Source column names.
const (
	fieldUserID     = "User ID"
	fieldName       = "Name"
	fieldClinic     = "Clinic"
	fieldAutomation = "Automation"
	fieldBooking    = "Booking"
	fieldTranscript = "Conversation Transcript"
	fieldCreated    = "Created"
	fieldLead       = "Lead Created"
	fieldEngaged    = "Engaged in conversation"
	fieldEmail      = "Email"
	fieldPhone      = "Phone"
)

// Stats are transformer-local counters used only for run statistics,
// never for control flow.
type Stats struct {
	Processed       int
	Bookings        int
	Leads           int
	Engaged         int
	Invalid         int
	AutomationCodes map[string]int
}

// Transformer applies the record transformation rules. It is pure with
// respect to I/O; the only mutable state is its statistics.
type Transformer struct {
	yearMarker  string
	markerYear  int
	longPattern *regexp.Regexp
	isoPattern  *regexp.Regexp
	datePattern *regexp.Regexp
	stats       Stats
}

// New creates a Transformer for the given booking year marker (a 4-digit
// year treated as an opaque substring, e.g. "2025").
func New(yearMarker string) *Transformer {
	markerYear, _ := strconv.Atoi(yearMarker)
	quoted := regexp.QuoteMeta(yearMarker)

	return &Transformer{
		yearMarker:  yearMarker,
		markerYear:  markerYear,
		longPattern: regexp.MustCompile(`\w{3}\s+\w{3}\s+\d{1,2}\s+` + quoted + `\s+\d{1,2}:\d{2}:\d{2}`),
		isoPattern:  regexp.MustCompile(quoted + `-\d{2}-\d{2}T\d{2}:\d{2}`),
		datePattern: regexp.MustCompile(quoted + `-\d{2}-\d{2}`),
		stats:       Stats{AutomationCodes: make(map[string]int)},
	}
}

// Transform maps one raw record to a canonical record. Missing optional
// fields are tolerated and mapped to nil; a record is rejected only when
// the transformer itself fails.
func (t *Transformer) Transform(rec airtable.Record) (out domain.CanonicalRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.stats.Invalid++
			err = fmt.Errorf("transform record %s: %v", rec.ID, r)
		}
	}()

	if rec.ID == "" {
		t.stats.Invalid++
		return domain.CanonicalRecord{}, fmt.Errorf("transform: record has no source id")
	}

	booking := rec.StringField(fieldBooking)

	out = domain.CanonicalRecord{
		SourceID:           rec.ID,
		ExternalCustomerID: optional(rec.StringField(fieldUserID)),
		Name:               optional(rec.StringField(fieldName)),
		Clinic:             optional(rec.StringField(fieldClinic)),
		Email:              optional(rec.StringField(fieldEmail)),
		Phone:              optional(phone.NormalizeE164(rec.StringField(fieldPhone))),
		Transcript:         optional(rec.StringField(fieldTranscript)),
		CreatedAt:          parseCreated(rec),
		BookingExists:      t.bookingExists(booking),
		BookingAt:          t.parseBookingAt(booking),
		LeadCreated:        leadCreated(rec.StringField(fieldLead)),
		Engaged:            engaged(rec.StringField(fieldEngaged)),
		AutomationCode:     NormalizeAutomationCode(rec.StringField(fieldAutomation)),
	}

	t.stats.Processed++
	if out.BookingExists {
		t.stats.Bookings++
	}
	if out.LeadCreated {
		t.stats.Leads++
	}
	if out.Engaged {
		t.stats.Engaged++
	}
	t.stats.AutomationCodes[out.AutomationCode]++

	return out, nil
}

// bookingExists is a substring test against the year marker, not a date
// validity test.
func (t *Transformer) bookingExists(raw string) bool {
	return raw != "" && strings.Contains(raw, t.yearMarker)
}

// parseBookingAt extracts a timestamp from the booking field. A booking
// whose date cannot be parsed still counts as a booking; only the
// timestamp is nil.
func (t *Transformer) parseBookingAt(raw string) *time.Time {
	if !t.bookingExists(raw) {
		return nil
	}

	// "Thu Oct 02 2025 18:30:00 GMT+0300"
	if match := t.longPattern.FindString(raw); match != "" {
		if ts, err := time.Parse("Mon Jan 2 2006 15:04:05", match); err == nil {
			return &ts
		}
	}

	// "2025-09-15T10:00"
	if match := t.isoPattern.FindString(raw); match != "" {
		if ts, err := time.Parse("2006-01-02T15:04", match); err == nil {
			return &ts
		}
	}

	// "2025-09-15"
	if match := t.datePattern.FindString(raw); match != "" {
		if ts, err := time.Parse("2006-01-02", match); err == nil {
			return &ts
		}
	}

	// Whole-string fallback, accepted only when the year matches the marker.
	for _, layout := range wholeStringLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			if ts.Year() == t.markerYear {
				return &ts
			}
		}
	}

	return nil
}

var wholeStringLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"01/02/2006",
}

// leadCreated is an exact, case-sensitive match on "Yes".
func leadCreated(raw string) bool {
	return strings.TrimSpace(raw) == "Yes"
}

// engaged accepts exactly the three known casings of "true".
func engaged(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "TRUE", "True", "true":
		return true
	}
	return false
}

// NormalizeAutomationCode strips query/fragment suffixes, resolves the
// legacy WEB alias and falls back to the default code for anything
// outside the catalog. Every input resolves to a valid code.
func NormalizeAutomationCode(raw string) string {
	code := strings.TrimSpace(raw)
	if code == "" {
		return domain.DefaultAutomationCode
	}

	if idx := strings.IndexAny(code, "?&#"); idx >= 0 {
		code = code[:idx]
	}

	if code == "WEB" {
		code = "WB"
	}

	if !domain.IsValidAutomationCode(code) {
		return domain.DefaultAutomationCode
	}

	return code
}

func parseCreated(rec airtable.Record) *time.Time {
	raw := strings.TrimSpace(rec.StringField(fieldCreated))
	if raw != "" {
		for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, raw); err == nil {
				return &ts
			}
		}
	}

	if !rec.CreatedTime.IsZero() {
		ts := rec.CreatedTime
		return &ts
	}

	return nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Stats returns a copy of the transformer counters.
func (t *Transformer) Stats() Stats {
	out := t.stats
	out.AutomationCodes = make(map[string]int, len(t.stats.AutomationCodes))
	for code, count := range t.stats.AutomationCodes {
		out.AutomationCodes[code] = count
	}
	return out
}

// Reset clears the transformer counters ahead of a new run.
func (t *Transformer) Reset() {
	t.stats = Stats{AutomationCodes: make(map[string]int)}
}
