package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chiro_dashboard_backend/internal/importer/domain"
)

const (
	unknownClinicName   = "Unknown Clinic"
	unknownLocationName = "Unknown Location"
	leadSource          = "chatbot"

	bookingStatusScheduled = "scheduled"
	bookingStatusUndated   = "undated"
)

// OrganizationEmailKey derives the natural key used to deduplicate
// organizations: the clinic name lowercased, stripped of everything but
// letters and digits, at a fixed domain. Empty names collapse into a
// single catch-all organization.
func OrganizationEmailKey(name string) string {
	if name == "" {
		name = unknownClinicName
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String() + "@clinic.com"
}

// UpsertPage writes one page of canonical records inside a single
// transaction. Any record failure rolls back the whole page and is
// returned to the caller; committed pages are never partially written.
func (r *Repository) UpsertPage(ctx context.Context, records []domain.CanonicalRecord) (domain.BatchCounters, error) {
	var counters domain.BatchCounters

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return counters, fmt.Errorf("begin page transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if err := r.upsertRecord(ctx, tx, rec, &counters); err != nil {
			return domain.BatchCounters{}, fmt.Errorf("record %s: %w", rec.SourceID, err)
		}
		counters.Processed++
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.BatchCounters{}, fmt.Errorf("commit page transaction: %w", err)
	}

	return counters, nil
}

func (r *Repository) upsertRecord(ctx context.Context, tx pgx.Tx, rec domain.CanonicalRecord, counters *domain.BatchCounters) error {
	clinic := ""
	if rec.Clinic != nil {
		clinic = *rec.Clinic
	}

	orgID, orgCreated, err := resolveOrganization(ctx, tx, clinic)
	if err != nil {
		return fmt.Errorf("resolve organization: %w", err)
	}
	if orgCreated {
		counters.OrganizationsCreated++
	}

	locationID, locationCreated, err := resolveLocation(ctx, tx, orgID, clinic)
	if err != nil {
		return fmt.Errorf("resolve location: %w", err)
	}
	if locationCreated {
		counters.LocationsCreated++
	}

	customerID, customerCreated, customerUpdated, err := resolveCustomer(ctx, tx, rec)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if customerCreated {
		counters.CustomersCreated++
	}
	if customerUpdated {
		counters.CustomersUpdated++
	}

	automationID, err := resolveAutomation(ctx, tx, rec.AutomationCode)
	if err != nil {
		return fmt.Errorf("resolve automation %q: %w", rec.AutomationCode, err)
	}

	conversationID, conversationCreated, err := upsertConversation(ctx, tx, rec, orgID, locationID, automationID, customerID)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if conversationCreated {
		counters.ConversationsCreated++
		counters.Created++
	} else {
		counters.Updated++
	}
	if rec.Engaged {
		counters.Engaged++
	}

	if rec.BookingExists {
		created, err := insertBookingIfAbsent(ctx, tx, rec, orgID, locationID, automationID, customerID, conversationID)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if created {
			counters.BookingsCreated++
		}
	}

	if rec.LeadCreated {
		created, err := insertLeadIfAbsent(ctx, tx, rec, orgID, locationID, automationID, customerID, conversationID)
		if err != nil {
			return fmt.Errorf("insert lead: %w", err)
		}
		if created {
			counters.LeadsCreated++
		}
	}

	return nil
}

func resolveOrganization(ctx context.Context, tx pgx.Tx, clinic string) (uuid.UUID, bool, error) {
	name := clinic
	if name == "" {
		name = unknownClinicName
	}
	email := OrganizationEmailKey(clinic)

	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM organizations WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (name, email, status)
		VALUES ($1, $2, 'active')
		RETURNING id`, name, email).Scan(&id)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func resolveLocation(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, clinic string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM locations WHERE organization_id = $1 LIMIT 1`, orgID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	name := clinic
	if name == "" {
		name = unknownLocationName
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO locations (organization_id, name, status)
		VALUES ($1, $2, 'active')
		RETURNING id`, orgID, name).Scan(&id)
	if err != nil {
		return uuid.Nil, false, err
	}

	// New locations get the full automation catalog linked so per-location
	// automation breakdowns are always complete.
	_, err = tx.Exec(ctx, `
		INSERT INTO location_automations (location_id, automation_id)
		SELECT $1, a.id
		FROM automations a
		ON CONFLICT (location_id, automation_id) DO NOTHING`, id)
	if err != nil {
		return uuid.Nil, false, err
	}

	return id, true, nil
}

func resolveCustomer(ctx context.Context, tx pgx.Tx, rec domain.CanonicalRecord) (id uuid.UUID, created, updated bool, err error) {
	key := rec.CustomerKey()

	err = tx.QueryRow(ctx, `SELECT id FROM customers WHERE external_id = $1`, key).Scan(&id)
	if err == nil {
		// Refresh with the latest non-null fields and bump activity.
		_, err = tx.Exec(ctx, `
			UPDATE customers SET
				name = COALESCE($2, name),
				email = COALESCE($3, email),
				phone = COALESCE($4, phone),
				last_activity_at = COALESCE($5, last_activity_at),
				updated_at = now()
			WHERE id = $1`,
			id, rec.Name, rec.Email, rec.Phone, rec.CreatedAt)
		if err != nil {
			return uuid.Nil, false, false, err
		}
		return id, false, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, false, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO customers (external_id, name, email, phone, first_seen_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`,
		key, rec.Name, rec.Email, rec.Phone, rec.CreatedAt).Scan(&id)
	if err != nil {
		return uuid.Nil, false, false, err
	}
	return id, true, false, nil
}

func resolveAutomation(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM automations WHERE code = $1`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	// Codes are whitelisted upstream, so this only fires the first time a
	// valid code appears on a database seeded before it existed.
	err = tx.QueryRow(ctx, `
		INSERT INTO automations (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = automations.name
		RETURNING id`, code, domain.AutomationNames[code]).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func upsertConversation(ctx context.Context, tx pgx.Tx, rec domain.CanonicalRecord, orgID, locationID, automationID, customerID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM conversations WHERE source_id = $1`, rec.SourceID).Scan(&id)
	if err == nil {
		_, err = tx.Exec(ctx, `
			UPDATE conversations SET
				transcript = COALESCE($2, transcript),
				engaged = $3,
				lead_created = $4,
				updated_at = now()
			WHERE id = $1`,
			id, rec.Transcript, rec.Engaged, rec.LeadCreated)
		if err != nil {
			return uuid.Nil, false, err
		}
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (
			source_id, organization_id, location_id, automation_id, customer_id,
			transcript, engaged, lead_created, source_created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.SourceID, orgID, locationID, automationID, customerID,
		rec.Transcript, rec.Engaged, rec.LeadCreated, rec.CreatedAt).Scan(&id)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func insertBookingIfAbsent(ctx context.Context, tx pgx.Tx, rec domain.CanonicalRecord, orgID, locationID, automationID, customerID, conversationID uuid.UUID) (bool, error) {
	var existing uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM bookings WHERE conversation_id = $1`, conversationID).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	// A booking marker with an unparseable date is still a booking; it is
	// stored without a timestamp so counts stay accurate.
	status := bookingStatusScheduled
	if rec.BookingAt == nil {
		status = bookingStatusUndated
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			organization_id, location_id, automation_id, customer_id, conversation_id,
			booked_at, status, source_created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		orgID, locationID, automationID, customerID, conversationID,
		rec.BookingAt, status, rec.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, nil
}

func insertLeadIfAbsent(ctx context.Context, tx pgx.Tx, rec domain.CanonicalRecord, orgID, locationID, automationID, customerID, conversationID uuid.UUID) (bool, error) {
	var existing uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM leads WHERE conversation_id = $1`, conversationID).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO leads (
			organization_id, location_id, automation_id, customer_id, conversation_id,
			source, status, source_created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 'new', $7)`,
		orgID, locationID, automationID, customerID, conversationID,
		leadSource, rec.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, nil
}
