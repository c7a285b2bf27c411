package scheduler

import (
	"testing"
	"time"
)

type testSchedulerConfig struct {
	morning        string
	evening        string
	timezone       string
	morningEnabled bool
	eveningEnabled bool
}

func (c testSchedulerConfig) GetRedisURL() string            { return "redis://localhost:6379" }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool      { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string      { return "imports" }
func (c testSchedulerConfig) GetAsynqConcurrency() int       { return 1 }
func (c testSchedulerConfig) GetMorningSchedule() string     { return c.morning }
func (c testSchedulerConfig) GetEveningSchedule() string     { return c.evening }
func (c testSchedulerConfig) GetScheduleTimezone() string    { return c.timezone }
func (c testSchedulerConfig) IsMorningScheduleEnabled() bool { return c.morningEnabled }
func (c testSchedulerConfig) IsEveningScheduleEnabled() bool { return c.eveningEnabled }

func TestImportSyncPayloadRoundTrip(t *testing.T) {
	task, err := NewImportSyncTask(ImportSyncPayload{
		TriggeredBy: "scheduler",
		Incremental: true,
		Notes:       "Scheduled morning import",
	})
	if err != nil {
		t.Fatalf("NewImportSyncTask: %v", err)
	}
	if task.Type() != TaskImportSync {
		t.Errorf("task type = %q, want %q", task.Type(), TaskImportSync)
	}

	payload, err := ParseImportSyncPayload(task)
	if err != nil {
		t.Fatalf("ParseImportSyncPayload: %v", err)
	}
	if payload.TriggeredBy != "scheduler" || !payload.Incremental || payload.Notes != "Scheduled morning import" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestNextRunsReturnsBothSchedulesSorted(t *testing.T) {
	cfg := testSchedulerConfig{
		morning:        "0 6 * * *",
		evening:        "0 18 * * *",
		timezone:       "UTC",
		morningEnabled: true,
		eveningEnabled: true,
	}

	from := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	runs := NextRuns(cfg, from)
	if len(runs) != 2 {
		t.Fatalf("expected 2 upcoming runs, got %d", len(runs))
	}

	wantFirst := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	wantSecond := time.Date(2025, 6, 11, 6, 0, 0, 0, time.UTC)
	if !runs[0].Equal(wantFirst) {
		t.Errorf("first run = %v, want %v", runs[0], wantFirst)
	}
	if !runs[1].Equal(wantSecond) {
		t.Errorf("second run = %v, want %v", runs[1], wantSecond)
	}
}

func TestNextRunsHonoursTimezone(t *testing.T) {
	cfg := testSchedulerConfig{
		morning:        "0 6 * * *",
		timezone:       "Europe/Amsterdam",
		morningEnabled: true,
	}

	from := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	runs := NextRuns(cfg, from)
	if len(runs) != 1 {
		t.Fatalf("expected 1 upcoming run, got %d", len(runs))
	}

	location, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	want := time.Date(2025, 6, 11, 6, 0, 0, 0, location)
	if !runs[0].Equal(want) {
		t.Errorf("run = %v, want %v", runs[0], want)
	}
}

func TestNextRunsSkipsDisabledAndInvalidEntries(t *testing.T) {
	cfg := testSchedulerConfig{
		morning:        "not-a-cron-spec",
		evening:        "0 18 * * *",
		timezone:       "UTC",
		morningEnabled: true,
		eveningEnabled: false,
	}

	runs := NextRuns(cfg, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}
