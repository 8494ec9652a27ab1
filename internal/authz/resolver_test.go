package authz_test

//go:generate mockgen -source=resolver.go -destination=mocks/mocks.go -package=mocks TokenVerifier,RevocationChecker,IdentityLookup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taxgate/internal/authz"
	"taxgate/internal/authz/mocks"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	ctrl            *gomock.Controller
	mockVerifier    *mocks.MockTokenVerifier
	mockIdentities  *mocks.MockIdentityLookup
	mockRevocations *mocks.MockRevocationChecker
	resolver        *authz.Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockVerifier = mocks.NewMockTokenVerifier(s.ctrl)
	s.mockIdentities = mocks.NewMockIdentityLookup(s.ctrl)
	s.mockRevocations = mocks.NewMockRevocationChecker(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.resolver = authz.NewResolver(
		s.mockVerifier,
		s.mockIdentities,
		authz.WithRevocationChecker(s.mockRevocations),
		authz.WithResolverLogger(logger),
	)
}

func (s *ResolverSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolverSuite) claims() *authz.TokenClaims {
	return &authz.TokenClaims{
		UserID: id.UserID(uuid.New()),
		Role:   authz.RoleAccountant,
		JTI:    uuid.NewString(),
	}
}

func (s *ResolverSuite) TestResolve_Success() {
	ctx := context.Background()
	claims := s.claims()
	orgID := id.OrgID(uuid.New())

	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(false, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), claims.UserID).Return(authz.Principal{
		UserID:   claims.UserID,
		Role:     authz.RoleAccountant,
		OrgID:    orgID,
		Active:   true,
		Verified: true,
	}, nil)

	principal, err := s.resolver.Resolve(ctx, "raw-token")
	s.Require().NoError(err)
	s.Equal(claims.UserID, principal.UserID)
	s.Equal(authz.RoleAccountant, principal.Role)
	s.Equal(orgID, principal.OrgID)
}

func (s *ResolverSuite) TestResolve_MissingToken() {
	_, err := s.resolver.Resolve(context.Background(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestResolve_InvalidToken() {
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "bad-token").
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))

	_, err := s.resolver.Resolve(context.Background(), "bad-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestResolve_RevokedToken() {
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "revoked-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(true, nil)

	_, err := s.resolver.Resolve(context.Background(), "revoked-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestResolve_RevocationStoreDownFailsClosed() {
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(false, assert.AnError)

	_, err := s.resolver.Resolve(context.Background(), "raw-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestResolve_UnknownIdentity() {
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(false, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), claims.UserID).
		Return(authz.Principal{}, dErrors.New(dErrors.CodeNotFound, "user not found"))

	_, err := s.resolver.Resolve(context.Background(), "raw-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestResolve_DeactivatedAccount() {
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(false, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), claims.UserID).Return(authz.Principal{
		UserID:   claims.UserID,
		Role:     authz.RoleAccountant,
		Active:   false,
		Verified: true,
	}, nil)

	_, err := s.resolver.Resolve(context.Background(), "raw-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))
	s.ErrorIs(err, dErrors.New(dErrors.CodeAccountDisabled, "account is deactivated"))
}

func (s *ResolverSuite) TestResolve_UnverifiedAccount() {
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockRevocations.EXPECT().IsTokenRevoked(gomock.Any(), claims.JTI).Return(false, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), claims.UserID).Return(authz.Principal{
		UserID:   claims.UserID,
		Role:     authz.RoleAccountant,
		Active:   true,
		Verified: false,
	}, nil)

	_, err := s.resolver.Resolve(context.Background(), "raw-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))
	s.ErrorIs(err, dErrors.New(dErrors.CodeAccountDisabled, "account is not verified"))
}

func (s *ResolverSuite) TestResolve_NoRevocationCheckerSkipsCheck() {
	resolver := authz.NewResolver(s.mockVerifier, s.mockIdentities)
	claims := s.claims()
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "raw-token").Return(claims, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), claims.UserID).Return(authz.Principal{
		UserID:   claims.UserID,
		Role:     authz.RoleEmployer,
		OrgID:    id.OrgID(uuid.New()),
		Active:   true,
		Verified: true,
	}, nil)

	principal, err := resolver.Resolve(context.Background(), "raw-token")
	s.Require().NoError(err)
	s.Equal(authz.RoleEmployer, principal.Role)
}
