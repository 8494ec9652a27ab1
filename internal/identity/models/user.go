// Package models defines identity entities and their API shapes.
package models

import (
	"time"

	"taxgate/internal/authz"
	id "taxgate/pkg/domain"
)

// User is an authenticated identity. PasswordHash never leaves the identity
// module; responses are built through ToResponse.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	FullName     string
	Role         authz.Role
	// OrgID is the organization the identity belongs to. Nil for admins.
	OrgID     id.OrgID
	Active    bool
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserResponse is the public shape of a user.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Active         bool      `json:"active"`
	Verified       bool      `json:"verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToResponse converts a user to its public shape, dropping the password hash.
func (u User) ToResponse() UserResponse {
	resp := UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		Active:    u.Active,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if !u.OrgID.IsNil() {
		resp.OrganizationID = u.OrgID.String()
	}
	return resp
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
