package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/platform/db"
)

func TestOrganizationEmailKey(t *testing.T) {
	cases := map[string]string{
		"Back In Line Chiropractic": "backinlinechiropractic@clinic.com",
		"O'Neil & Sons, LLC":        "oneilsonsllc@clinic.com",
		"Clinic 24/7":               "clinic247@clinic.com",
		"":                          "unknownclinic@clinic.com",
	}

	for input, want := range cases {
		if got := OrganizationEmailKey(input); got != want {
			t.Errorf("OrganizationEmailKey(%q) = %q, want %q", input, got, want)
		}
	}
}

type testDatabaseConfig struct{ url string }

func (c testDatabaseConfig) GetDatabaseURL() string { return c.url }

// TestUpsertPageIdempotence runs the same page twice against a real
// database and checks the second pass creates nothing new. Set
// TEST_DATABASE_URL to a disposable Postgres instance to run it.
func TestUpsertPageIdempotence(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := db.RunMigrations(ctx, testDatabaseConfig{dsn}, "../../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := New(pool)
	if err := repo.EnsureAutomations(ctx); err != nil {
		t.Fatalf("ensure automations: %v", err)
	}

	str := func(s string) *string { return &s }
	suffix := uuid.NewString()
	clinic := "Idempotence Clinic " + suffix
	createdAt := time.Now().UTC().Truncate(time.Second)
	bookedAt := time.Date(2025, 10, 2, 18, 30, 0, 0, time.UTC)

	records := []domain.CanonicalRecord{
		{
			SourceID:           "rec-" + suffix + "-1",
			ExternalCustomerID: str("cust-" + suffix),
			Name:               str("Alice Example"),
			Clinic:             &clinic,
			Email:              str("alice@example.com"),
			Transcript:         str("hello"),
			CreatedAt:          &createdAt,
			Engaged:            true,
			LeadCreated:        true,
			BookingExists:      true,
			BookingAt:          &bookedAt,
			AutomationCode:     "WB",
		},
		{
			// No user id and an undated booking: the synthetic customer
			// key and the NULL booked_at row must dedupe too.
			SourceID:       "rec-" + suffix + "-2",
			Clinic:         &clinic,
			Transcript:     str("hi"),
			CreatedAt:      &createdAt,
			BookingExists:  true,
			AutomationCode: "DB",
		},
	}

	first, err := repo.UpsertPage(ctx, records)
	if err != nil {
		t.Fatalf("first UpsertPage: %v", err)
	}
	if first.OrganizationsCreated != 1 || first.LocationsCreated != 1 {
		t.Errorf("first pass orgs/locations = %d/%d, want 1/1",
			first.OrganizationsCreated, first.LocationsCreated)
	}
	if first.CustomersCreated != 2 || first.ConversationsCreated != 2 {
		t.Errorf("first pass customers/conversations = %d/%d, want 2/2",
			first.CustomersCreated, first.ConversationsCreated)
	}
	if first.BookingsCreated != 2 || first.LeadsCreated != 1 {
		t.Errorf("first pass bookings/leads = %d/%d, want 2/1",
			first.BookingsCreated, first.LeadsCreated)
	}

	second, err := repo.UpsertPage(ctx, records)
	if err != nil {
		t.Fatalf("second UpsertPage: %v", err)
	}
	if second.OrganizationsCreated != 0 || second.LocationsCreated != 0 ||
		second.CustomersCreated != 0 || second.ConversationsCreated != 0 ||
		second.BookingsCreated != 0 || second.LeadsCreated != 0 {
		t.Errorf("second pass created entities: %+v, want none", second)
	}
	if second.Processed != 2 || second.Updated != 2 || second.CustomersUpdated != 2 {
		t.Errorf("second pass processed/updated/customersUpdated = %d/%d/%d, want 2/2/2",
			second.Processed, second.Updated, second.CustomersUpdated)
	}
}
