// Package authz is the authorization core: it resolves authenticated
// principals, decides whether they may act on a resource, and guarantees an
// audit record for every decision and every state-changing operation.
//
// The package owns no entities. Callers hand it a raw token and a resource
// descriptor; it consumes token-verification, identity-lookup, and audit-store
// collaborators. Role checks live in exactly one place, the rule table, so a
// new endpoint cannot ship with a missed check.
package authz

import (
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleAccountant   Role = "ACCOUNTANT"
	RoleEmployer     Role = "EMPLOYER"
	RoleOrganization Role = "ORGANIZATION"
)

// ParseRole validates a role string from token claims or storage.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleAccountant, RoleEmployer, RoleOrganization:
		return Role(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
}

// Principal is the authenticated actor making a request. It is created once
// per request by the Resolver and passed explicitly, never read from ambient
// state, so the policy engine stays pure. Immutable for the request's
// lifetime; never persisted by this package.
type Principal struct {
	UserID   id.UserID
	Role     Role
	OrgID    id.OrgID // nil for Admin or org-less identities
	Active   bool
	Verified bool
}
