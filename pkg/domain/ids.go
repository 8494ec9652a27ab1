// Package domain defines typed identifiers shared across taxgate modules.
//
// Every entity gets its own UUID-backed type so a taxpayer ID can never be
// passed where an organization ID is expected. Parsing enforces the trust
// boundary invariant: IDs must be valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "taxgate/pkg/domain-errors"
)

// UserID identifies an authenticated identity (users table).
type UserID uuid.UUID

// OrgID identifies an organization (accounting firm, employer, fintech).
type OrgID uuid.UUID

// TaxpayerID identifies a taxpayer profile.
type TaxpayerID uuid.UUID

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TaxpayerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id OrgID) String() string      { return uuid.UUID(id).String() }
func (id TaxpayerID) String() string { return uuid.UUID(id).String() }

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user id")
	return UserID(parsed), err
}

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(raw string) (OrgID, error) {
	parsed, err := parseUUID(raw, "organization id")
	return OrgID(parsed), err
}

// ParseTaxpayerID parses and validates a taxpayer ID from its string form.
func ParseTaxpayerID(raw string) (TaxpayerID, error) {
	parsed, err := parseUUID(raw, "taxpayer id")
	return TaxpayerID(parsed), err
}

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return parsed, nil
}
