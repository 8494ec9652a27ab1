package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxgate/internal/authz"
	"taxgate/internal/identity/models"
	"taxgate/internal/identity/store/revocation"
	userstore "taxgate/internal/identity/store/user"
	"taxgate/internal/token"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	users       *userstore.InMemoryStore
	revocations *revocation.InMemoryStore
	tokens      *token.JWTService
	service     *Service
	orgID       id.OrgID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = userstore.NewInMemoryStore()
	s.revocations = revocation.NewInMemoryStore()
	s.tokens = token.NewJWTService("test-signing-key", "taxgate", "taxgate-api", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.users, s.tokens, time.Hour,
		WithLogger(logger),
		WithRevoker(s.revocations),
	)
	s.orgID = id.OrgID(uuid.New())
}

func (s *ServiceSuite) register(email string) models.User {
	user, err := s.service.Register(context.Background(), models.RegisterRequest{
		Email:          email,
		Password:       "correct horse battery",
		FullName:       "Dana Accountant",
		Role:           string(authz.RoleAccountant),
		OrganizationID: s.orgID.String(),
	})
	s.Require().NoError(err)
	return user
}

func (s *ServiceSuite) verify(userID id.UserID) {
	_, err := s.service.VerifyUser(context.Background(), userID)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestRegister() {
	user := s.register("dana@firm.example")

	s.False(user.ID.IsNil())
	s.Equal("dana@firm.example", user.Email)
	s.Equal(authz.RoleAccountant, user.Role)
	s.Equal(s.orgID, user.OrgID)
	s.True(user.Active)
	s.False(user.Verified, "new accounts start unverified")
	s.NotEqual("correct horse battery", user.PasswordHash)
}

func (s *ServiceSuite) TestRegister_DuplicateEmail() {
	s.register("dana@firm.example")

	_, err := s.service.Register(context.Background(), models.RegisterRequest{
		Email:          "dana@firm.example",
		Password:       "another password",
		FullName:       "Other Dana",
		Role:           string(authz.RoleEmployer),
		OrganizationID: s.orgID.String(),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRegister_InvalidOrganizationID() {
	_, err := s.service.Register(context.Background(), models.RegisterRequest{
		Email:          "dana@firm.example",
		Password:       "correct horse battery",
		FullName:       "Dana",
		Role:           string(authz.RoleAccountant),
		OrganizationID: "not-a-uuid",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestLogin() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)

	resp, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "correct horse battery",
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.AccessToken)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(int64(3600), resp.ExpiresIn)

	claims, err := s.tokens.Verify(context.Background(), resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(user.ID, claims.UserID)
	s.Equal(authz.RoleAccountant, claims.Role)
}

func (s *ServiceSuite) TestLogin_WrongPassword() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)

	_, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "wrong password!",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLogin_UnknownEmailSameError() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)

	_, wrongPassword := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "wrong password!",
	})
	_, unknownEmail := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@firm.example",
		Password: "wrong password!",
	})
	s.Require().Error(wrongPassword)
	s.Require().Error(unknownEmail)
	s.Equal(wrongPassword.Error(), unknownEmail.Error(), "login must not leak which emails exist")
}

func (s *ServiceSuite) TestLogin_UnverifiedAccount() {
	s.register("dana@firm.example")

	_, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "correct horse battery",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))
}

func (s *ServiceSuite) TestLogin_DeactivatedAccount() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)
	_, err := s.service.DeactivateUser(context.Background(), user.ID)
	s.Require().NoError(err)

	_, err = s.service.Login(context.Background(), models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "correct horse battery",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))
}

func (s *ServiceSuite) TestLogout_RevokesToken() {
	ctx := context.Background()
	user := s.register("dana@firm.example")
	s.verify(user.ID)

	resp, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "dana@firm.example",
		Password: "correct horse battery",
	})
	s.Require().NoError(err)

	claims, err := s.tokens.Verify(ctx, resp.AccessToken)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(ctx, resp.AccessToken))

	revoked, err := s.revocations.IsTokenRevoked(ctx, claims.JTI)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *ServiceSuite) TestLookupPrincipal() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)

	principal, err := s.service.LookupPrincipal(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(user.ID, principal.UserID)
	s.Equal(authz.RoleAccountant, principal.Role)
	s.Equal(s.orgID, principal.OrgID)
	s.True(principal.Active)
	s.True(principal.Verified)
}

func (s *ServiceSuite) TestLookupPrincipal_UnknownUser() {
	_, err := s.service.LookupPrincipal(context.Background(), id.UserID(uuid.New()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateProfile() {
	user := s.register("dana@firm.example")
	newName := "Dana Senior Accountant"

	updated, err := s.service.UpdateProfile(context.Background(), user.ID, models.UpdateProfileRequest{
		FullName: &newName,
	})
	s.Require().NoError(err)
	s.Equal(newName, updated.FullName)

	stored, err := s.service.Get(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(newName, stored.FullName)
}

func (s *ServiceSuite) TestDeactivate_ReflectedInPrincipal() {
	user := s.register("dana@firm.example")
	s.verify(user.ID)
	_, err := s.service.DeactivateUser(context.Background(), user.ID)
	s.Require().NoError(err)

	principal, err := s.service.LookupPrincipal(context.Background(), user.ID)
	s.Require().NoError(err)
	s.False(principal.Active, "deactivation must be visible to the next request")
}

func (s *ServiceSuite) TestEnsureAdmin_BootstrapsLogin() {
	ctx := context.Background()
	s.Require().NoError(s.service.EnsureAdmin(ctx, "Admin@Taxgate.Local", "admin-change-me"))

	// The seeded account is active and verified, so a fresh deployment can
	// authenticate immediately.
	resp, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "admin@taxgate.local",
		Password: "admin-change-me",
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.AccessToken)

	user, err := s.users.FindByEmail(ctx, "admin@taxgate.local")
	s.Require().NoError(err)
	s.Equal(authz.RoleAdmin, user.Role)
	s.True(user.OrgID.IsNil())
}

func (s *ServiceSuite) TestEnsureAdmin_LeavesExistingAccountAlone() {
	ctx := context.Background()
	s.Require().NoError(s.service.EnsureAdmin(ctx, "admin@taxgate.local", "first-password"))
	s.Require().NoError(s.service.EnsureAdmin(ctx, "admin@taxgate.local", "second-password"))

	_, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "admin@taxgate.local",
		Password: "first-password",
	})
	s.NoError(err, "reseeding must not rotate an existing password")
}
