// Package service implements identity lifecycle operations: registration,
// credential login, token revocation, and the per-request principal lookup
// the authorization layer depends on.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taxgate/internal/authz"
	"taxgate/internal/identity/models"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/sentinel"
	"taxgate/pkg/requestcontext"
)

// UserStore persists users. Implementations return sentinel errors.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, userID id.UserID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// TokenIssuer mints and verifies access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role authz.Role) (string, error)
	Verify(ctx context.Context, rawToken string) (*authz.TokenClaims, error)
}

// Revoker invalidates token IDs ahead of their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// Service wires identity operations over the user store and token issuer.
type Service struct {
	users    UserStore
	tokens   TokenIssuer
	revoker  Revoker
	logger   *slog.Logger
	tokenTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRevoker enables logout-time token revocation.
func WithRevoker(r Revoker) Option {
	return func(s *Service) { s.revoker = r }
}

func New(users UserStore, tokens TokenIssuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		logger:   slog.Default(),
		tokenTTL: tokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new identity. Accounts start active but unverified; they
// cannot authenticate against protected operations until verified.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		return models.User{}, err
	}
	orgID, err := id.ParseOrgID(req.OrganizationID)
	if err != nil {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	now := requestcontext.Now(ctx)
	user := models.User{
		ID:           id.UserID(uuid.New()),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		OrgID:        orgID,
		Active:       true,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.User{}, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	s.logger.InfoContext(ctx, "user registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
		"role", string(user.Role),
	)
	return user, nil
}

// EnsureAdmin provisions the bootstrap admin account if the email is not yet
// taken. Registration and verification are admin-gated, so without this a
// fresh deployment has no account that can ever authenticate. Existing
// accounts are left untouched, making the call safe on every startup.
func (s *Service) EnsureAdmin(ctx context.Context, adminEmail, password string) error {
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))

	_, err := s.users.FindByEmail(ctx, adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up seed admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash seed admin password")
	}

	now := requestcontext.Now(ctx)
	admin := models.User{
		ID:           id.UserID(uuid.New()),
		Email:        adminEmail,
		PasswordHash: string(hash),
		FullName:     "Platform Administrator",
		Role:         authz.RoleAdmin,
		Active:       true,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		// A concurrent replica may have seeded first.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "create seed admin")
	}

	s.logger.InfoContext(ctx, "seed admin provisioned",
		"user_id", admin.ID.String(),
		"email", adminEmail,
	)
	return nil
}

// Login exchanges credentials for an access token. Invalid email and invalid
// password return the same error so the endpoint does not leak which emails
// exist.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.TokenResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.TokenResponse{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return models.TokenResponse{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WarnContext(ctx, "failed login attempt",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", user.ID.String(),
			"client_ip", requestcontext.ClientIP(ctx),
			"log_type", "security",
		)
		return models.TokenResponse{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	if !user.Active {
		return models.TokenResponse{}, dErrors.New(dErrors.CodeAccountDisabled, "account is deactivated")
	}
	if !user.Verified {
		return models.TokenResponse{}, dErrors.New(dErrors.CodeAccountDisabled, "account is not verified")
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return models.TokenResponse{}, dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}

	return models.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}

// Logout revokes the presented token for its remaining lifetime. Without a
// configured revoker the token simply ages out.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.Verify(ctx, rawToken)
	if err != nil {
		return err
	}
	if s.revoker == nil {
		s.logger.WarnContext(ctx, "logout without revocation store; token remains valid until expiry",
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.JTI, s.tokenTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "revoke token")
	}
	return nil
}

// LookupPrincipal implements the authorization layer's IdentityLookup: the
// store, not the token, is the source of truth for role and liveness.
func (s *Service) LookupPrincipal(ctx context.Context, userID id.UserID) (authz.Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return authz.Principal{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return authz.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return authz.Principal{
		UserID:   user.ID,
		Role:     user.Role,
		OrgID:    user.OrgID,
		Active:   user.Active,
		Verified: user.Verified,
	}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, userID id.UserID) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return user, nil
}

// UpdateProfile applies the caller's profile changes.
func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, req models.UpdateProfileRequest) (models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	return user, nil
}

// VerifyUser marks an account as verified. Idempotent.
func (s *Service) VerifyUser(ctx context.Context, userID id.UserID) (models.User, error) {
	return s.setFlags(ctx, userID, func(u *models.User) { u.Verified = true })
}

// DeactivateUser disables an account. In-flight tokens stop working on the
// next request because the resolver re-reads liveness per request.
func (s *Service) DeactivateUser(ctx context.Context, userID id.UserID) (models.User, error) {
	return s.setFlags(ctx, userID, func(u *models.User) { u.Active = false })
}

func (s *Service) setFlags(ctx context.Context, userID id.UserID, apply func(*models.User)) (models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	apply(&user)
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	return user, nil
}
