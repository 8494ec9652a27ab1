package models

import (
	"strings"

	"taxgate/internal/authz"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/email"
)

// RegisterRequest creates a new identity. Registration is admin-gated;
// accounts start unverified and an admin verifies them before they can act.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)

	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if len(r.Password) < 8 {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	if r.FullName == "" {
		// A missing name is not worth rejecting registration over.
		first, last := email.DeriveNameFromEmail(r.Email)
		r.FullName = first + " " + last
	}
	role, err := authz.ParseRole(r.Role)
	if err != nil {
		return err
	}
	// Admin accounts are provisioned operationally, never self-registered.
	if role == authz.RoleAdmin {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	if r.OrganizationID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}
	return nil
}

// LoginRequest exchanges credentials for an access token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	return nil
}

// UpdateProfileRequest changes the caller's own profile fields. All fields are
// optional; absent fields are left unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r.FullName != nil {
		trimmed := strings.TrimSpace(*r.FullName)
		if trimmed == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "full name must not be empty")
		}
		r.FullName = &trimmed
	}
	return nil
}
