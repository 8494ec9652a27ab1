// Package models defines organization entities and API shapes.
package models

import (
	"strings"
	"time"

	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

// Kind classifies an organization.
type Kind string

const (
	KindAccountingFirm Kind = "accounting_firm"
	KindEmployer       Kind = "employer"
	KindFintech        Kind = "fintech"
)

// ParseKind validates an organization kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindAccountingFirm, KindEmployer, KindFintech:
		return Kind(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown organization kind")
	}
}

// Organization is a tenant: an accounting firm, employer, or fintech whose
// members share taxpayer data.
type Organization struct {
	ID        id.OrgID
	Name      string
	Kind      Kind
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganizationResponse is the public shape of an organization.
type OrganizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o Organization) ToResponse() OrganizationResponse {
	return OrganizationResponse{
		ID:        o.ID.String(),
		Name:      o.Name,
		Kind:      string(o.Kind),
		Active:    o.Active,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// CreateOrganizationRequest provisions a new tenant. Admin-only.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (r *CreateOrganizationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "organization name is required")
	}
	if _, err := ParseKind(r.Kind); err != nil {
		return err
	}
	return nil
}
