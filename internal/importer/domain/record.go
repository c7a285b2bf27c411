// Package domain holds the core types of the import pipeline: the canonical
// record produced by transformation and the run bookkeeping model.
package domain

import "time"

// CanonicalRecord is the normalized, strictly-typed representation of one
// source record after business-rule transformation. It is immutable once
// produced and consumed exactly once by the batch upsert.
type CanonicalRecord struct {
	SourceID           string
	ExternalCustomerID *string
	Name               *string
	Clinic             *string
	Email              *string
	Phone              *string
	Transcript         *string
	CreatedAt          *time.Time
	Engaged            bool
	LeadCreated        bool
	BookingExists      bool
	BookingAt          *time.Time
	AutomationCode     string
}

// CustomerKey returns the identity used for customer upserts: the external
// customer id when the source provided one, otherwise a deterministic
// synthetic key derived from the source record id. Records without a user
// id are never silently dropped.
func (r CanonicalRecord) CustomerKey() string {
	if r.ExternalCustomerID != nil && *r.ExternalCustomerID != "" {
		return *r.ExternalCustomerID
	}
	return "no-user-id-" + r.SourceID
}
