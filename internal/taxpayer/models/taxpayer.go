// Package models defines taxpayer entities and API shapes.
package models

import (
	"regexp"
	"strings"
	"time"

	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

// Status is the taxpayer verification lifecycle.
type Status string

const (
	// StatusPending: profile captured, identity not yet confirmed against the
	// revenue authority.
	StatusPending Status = "pending"
	// StatusVerified: an accountant or admin confirmed the profile.
	StatusVerified Status = "verified"
)

// tinPattern is the tax identification number format: 9 to 11 digits.
var tinPattern = regexp.MustCompile(`^[0-9]{9,11}$`)

// NormalizeTIN strips separators and validates the TIN format.
func NormalizeTIN(raw string) (string, error) {
	tin := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(raw))
	if !tinPattern.MatchString(tin) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "TIN must be 9 to 11 digits")
	}
	return tin, nil
}

// Taxpayer is a taxpayer profile owned by an organization. TIN is unique
// within the owning organization. Deletion is soft: DeletedAt is set and the
// row drops out of reads, but the record survives for the audit trail.
type Taxpayer struct {
	ID         id.TaxpayerID
	OrgID      id.OrgID
	TIN        string
	FirstName  string
	LastName   string
	Email      string
	Status     Status
	VerifiedAt *time.Time
	VerifiedBy id.UserID // nil until verified
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Deleted reports whether the profile has been soft-deleted.
func (t Taxpayer) Deleted() bool { return t.DeletedAt != nil }

// TaxpayerResponse is the public shape of a taxpayer.
type TaxpayerResponse struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	TIN            string     `json:"tin"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	Status         string     `json:"status"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	VerifiedBy     string     `json:"verified_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t Taxpayer) ToResponse() TaxpayerResponse {
	resp := TaxpayerResponse{
		ID:             t.ID.String(),
		OrganizationID: t.OrgID.String(),
		TIN:            t.TIN,
		FirstName:      t.FirstName,
		LastName:       t.LastName,
		Email:          t.Email,
		Status:         string(t.Status),
		VerifiedAt:     t.VerifiedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if !t.VerifiedBy.IsNil() {
		resp.VerifiedBy = t.VerifiedBy.String()
	}
	return resp
}

// CreateTaxpayerRequest captures a new taxpayer profile.
type CreateTaxpayerRequest struct {
	TIN       string `json:"tin"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

func (r *CreateTaxpayerRequest) Validate() error {
	tin, err := NormalizeTIN(r.TIN)
	if err != nil {
		return err
	}
	r.TIN = tin
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if r.FirstName == "" || r.LastName == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "first and last name are required")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeInvalidInput, "email is not valid")
	}
	return nil
}

// UpdateTaxpayerRequest changes mutable profile fields. Absent fields are
// left unchanged. TIN and organization are immutable after creation.
type UpdateTaxpayerRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

func (r *UpdateTaxpayerRequest) Validate() error {
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "first name must not be empty")
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "last name must not be empty")
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		if email != "" && !strings.Contains(email, "@") {
			return dErrors.New(dErrors.CodeInvalidInput, "email is not valid")
		}
		r.Email = &email
	}
	return nil
}

// BulkCreateRequest imports a batch of taxpayer profiles. Rows import
// independently; a conflicting row rejects only itself.
type BulkCreateRequest struct {
	Taxpayers []CreateTaxpayerRequest `json:"taxpayers"`
}

// MaxBulkSize bounds a single import batch.
const MaxBulkSize = 500

func (r *BulkCreateRequest) Validate() error {
	if len(r.Taxpayers) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "taxpayers must not be empty")
	}
	if len(r.Taxpayers) > MaxBulkSize {
		return dErrors.New(dErrors.CodeInvalidInput, "batch exceeds the maximum of 500 taxpayers")
	}
	for i := range r.Taxpayers {
		if err := r.Taxpayers[i].Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid taxpayer in batch")
		}
	}
	return nil
}

// BulkRowFailure reports one rejected row of a bulk import.
type BulkRowFailure struct {
	Index int    `json:"index"`
	TIN   string `json:"tin"`
	Error string `json:"error"`
}

// BulkResult is the per-row outcome of a bulk import: the rows that were
// imported and the rows that were rejected, by input position.
type BulkResult struct {
	Created []Taxpayer
	Failed  []BulkRowFailure
}

// BulkCreateResponse is the public shape of a bulk import outcome.
type BulkCreateResponse struct {
	Created []TaxpayerResponse `json:"created"`
	Failed  []BulkRowFailure   `json:"failed"`
}

func (r BulkResult) ToResponse() BulkCreateResponse {
	resp := BulkCreateResponse{
		Created: make([]TaxpayerResponse, 0, len(r.Created)),
		Failed:  r.Failed,
	}
	if resp.Failed == nil {
		resp.Failed = []BulkRowFailure{}
	}
	for _, tp := range r.Created {
		resp.Created = append(resp.Created, tp.ToResponse())
	}
	return resp
}

// ListFilter narrows taxpayer listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Stats summarizes an organization's taxpayer roster.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
}
