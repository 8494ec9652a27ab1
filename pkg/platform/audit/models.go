// Package audit implements the append-only audit ledger: every authorization
// decision and every state-changing operation leaves a record here.
//
// Records are write-once. The application never updates or deletes them; the
// store collaborator only appends. Ordering across requests is whatever append
// order the store observes; records belonging to one request share a
// correlation ID.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "taxgate/pkg/domain"
)

// Outcome classifies what a record captures about the request lifecycle.
type Outcome string

const (
	// OutcomeAllowed: the policy engine allowed the action. Emitted before the
	// business operation runs.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeDenied: the policy engine denied the action. Terminal; the
	// business operation never ran.
	OutcomeDenied Outcome = "denied"
	// OutcomeSucceeded: the allowed business operation completed normally.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed: the allowed business operation returned an error or
	// panicked. Reason carries the failure category, never internal detail.
	OutcomeFailed Outcome = "failed"
	// OutcomeRejected: an authentication attempt was rejected before any
	// policy decision. Only emitted when auth-failure auditing is enabled.
	OutcomeRejected Outcome = "rejected"
)

// Record is a single entry in the audit ledger.
type Record struct {
	ID           uuid.UUID
	Timestamp    time.Time
	PrincipalID  id.UserID // nil for rejected authentication attempts
	Role         string
	Action       string
	ResourceType string
	ResourceID   string
	OrgID        id.OrgID // owning organization of the target resource, nil when unscoped
	Outcome      Outcome
	Reason       string // deny reason or failure category; empty for allowed/succeeded
	RequestID    string
	ClientIP     string
	UserAgent    string
}
