package authz

import (
	"context"
	"log/slog"

	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

// TokenClaims are the verified claims the token collaborator hands back.
type TokenClaims struct {
	UserID id.UserID
	Role   Role
	JTI    string // token ID for revocation tracking
}

// TokenVerifier performs cryptographic validation of a raw bearer token.
// The resolver never touches key material itself.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*TokenClaims, error)
}

// RevocationChecker reports whether a token has been revoked since issuance.
// Optional: a nil checker skips the revocation step.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// IdentityLookup returns the current principal state for an identity. Looking
// this up per request catches role changes and deactivations that happened
// after the token was issued.
type IdentityLookup interface {
	LookupPrincipal(ctx context.Context, userID id.UserID) (Principal, error)
}

// Resolver turns a raw bearer token into a typed Principal.
//
// Failure modes are deliberate and distinct: Unauthenticated for anything
// wrong with the token itself, AccountDisabled for a valid token whose
// identity has since been deactivated or is still unverified.
type Resolver struct {
	verifier    TokenVerifier
	identities  IdentityLookup
	revocations RevocationChecker
	logger      *slog.Logger
}

// ResolverOption configures optional resolver collaborators.
type ResolverOption func(*Resolver)

// WithRevocationChecker enables per-request token revocation checks.
func WithRevocationChecker(rc RevocationChecker) ResolverOption {
	return func(r *Resolver) { r.revocations = rc }
}

// WithResolverLogger sets the resolver's logger. Defaults to slog.Default.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(verifier TokenVerifier, identities IdentityLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		verifier:   verifier,
		identities: identities,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates the token and maps it to the identity's current state.
// Read-only: no side effects, no audit emission (that is the Enforcer's job).
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Principal, error) {
	if rawToken == "" {
		return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}

	claims, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
	}

	if r.revocations != nil {
		revoked, err := r.revocations.IsTokenRevoked(ctx, claims.JTI)
		if err != nil {
			// Revocation store down: fail closed. An unverifiable token must
			// not grant access.
			r.logger.ErrorContext(ctx, "token revocation check failed", "error", err)
			return Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "could not validate token")
		}
		if revoked {
			return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
		}
	}

	// The token's role claim is advisory only; the identity store is the
	// source of truth for role, organization, and liveness.
	principal, err := r.identities.LookupPrincipal(ctx, claims.UserID)
	if err != nil {
		return Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "unknown identity")
	}

	if !principal.Active {
		return Principal{}, dErrors.New(dErrors.CodeAccountDisabled, "account is deactivated")
	}
	if !principal.Verified {
		return Principal{}, dErrors.New(dErrors.CodeAccountDisabled, "account is not verified")
	}

	return principal, nil
}
