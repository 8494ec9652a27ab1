package authz_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taxgate/internal/authz"
	"taxgate/internal/authz/mocks"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/audit"
	auditmemory "taxgate/pkg/platform/audit/store/memory"
)

type EnforcerSuite struct {
	suite.Suite
	ctrl           *gomock.Controller
	mockVerifier   *mocks.MockTokenVerifier
	mockIdentities *mocks.MockIdentityLookup
	store          *auditmemory.InMemoryStore
	recorder       *audit.Recorder
	enforcer       *authz.Enforcer

	orgID id.OrgID
}

func TestEnforcerSuite(t *testing.T) {
	suite.Run(t, new(EnforcerSuite))
}

func (s *EnforcerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockVerifier = mocks.NewMockTokenVerifier(s.ctrl)
	s.mockIdentities = mocks.NewMockIdentityLookup(s.ctrl)
	s.store = auditmemory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.recorder = audit.NewRecorder(s.store, audit.WithLogger(logger))
	s.orgID = id.OrgID(uuid.New())

	resolver := authz.NewResolver(s.mockVerifier, s.mockIdentities, authz.WithResolverLogger(logger))
	s.enforcer = authz.NewEnforcer(
		resolver,
		authz.NewEngine(authz.DefaultRules()),
		s.recorder,
		authz.WithEnforcerLogger(logger),
	)
}

func (s *EnforcerSuite) TearDownTest() {
	s.recorder.Close()
	s.ctrl.Finish()
}

// expectPrincipal wires the token and identity mocks so rawToken resolves to
// an active, verified principal with the given role in s.orgID.
func (s *EnforcerSuite) expectPrincipal(rawToken string, role authz.Role) authz.Principal {
	principal := authz.Principal{
		UserID:   id.UserID(uuid.New()),
		Role:     role,
		OrgID:    s.orgID,
		Active:   true,
		Verified: true,
	}
	claims := &authz.TokenClaims{UserID: principal.UserID, Role: role, JTI: uuid.NewString()}
	s.mockVerifier.EXPECT().Verify(gomock.Any(), rawToken).Return(claims, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), principal.UserID).Return(principal, nil)
	return principal
}

func (s *EnforcerSuite) TestEnforce_AllowedAndSucceeded() {
	principal := s.expectPrincipal("token", authz.RoleAccountant)
	res := authz.TaxpayerCollection(s.orgID)

	result, err := s.enforcer.Enforce(context.Background(), "token", authz.ActionList, res, func(ctx context.Context) (any, error) {
		return "listing", nil
	})
	s.Require().NoError(err)
	s.Equal("listing", result)

	records := s.store.All()
	s.Require().Len(records, 2, "allowed operation must leave exactly two records")

	s.Equal(audit.OutcomeAllowed, records[0].Outcome)
	s.Equal(audit.OutcomeSucceeded, records[1].Outcome)
	for _, rec := range records {
		s.Equal(principal.UserID, rec.PrincipalID)
		s.Equal(string(authz.RoleAccountant), rec.Role)
		s.Equal(string(authz.ActionList), rec.Action)
		s.Equal(string(authz.ResourceTaxpayer), rec.ResourceType)
		s.Equal(s.orgID, rec.OrgID)
		s.Empty(rec.Reason)
		s.NotEqual(uuid.Nil, rec.ID)
		s.False(rec.Timestamp.IsZero())
	}
}

func (s *EnforcerSuite) TestEnforce_AllowedAndFailed() {
	s.expectPrincipal("token", authz.RoleAccountant)
	res := authz.TaxpayerCollection(s.orgID)
	opErr := dErrors.New(dErrors.CodeConflict, "taxpayer with this TIN already exists")

	_, err := s.enforcer.Enforce(context.Background(), "token", authz.ActionCreate, res, func(ctx context.Context) (any, error) {
		return nil, opErr
	})
	s.Require().ErrorIs(err, opErr)

	records := s.store.All()
	s.Require().Len(records, 2)
	s.Equal(audit.OutcomeAllowed, records[0].Outcome)
	s.Equal(audit.OutcomeFailed, records[1].Outcome)
	// Category only, never the error detail.
	s.Equal(string(dErrors.CodeConflict), records[1].Reason)
	s.NotContains(records[1].Reason, "TIN")
}

func (s *EnforcerSuite) TestEnforce_Denied() {
	s.expectPrincipal("token", authz.RoleEmployer)
	res := authz.TaxpayerResource(id.TaxpayerID(uuid.New()), s.orgID)
	executed := false

	_, err := s.enforcer.Enforce(context.Background(), "token", authz.ActionVerify, res, func(ctx context.Context) (any, error) {
		executed = true
		return nil, nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.False(executed, "denied operation must never run")

	records := s.store.All()
	s.Require().Len(records, 1, "denied request must leave exactly one record")
	s.Equal(audit.OutcomeDenied, records[0].Outcome)
	s.Equal(authz.ReasonNoRule, records[0].Reason)
}

func (s *EnforcerSuite) TestEnforce_DeniedCrossOrganization() {
	s.expectPrincipal("token", authz.RoleAccountant)
	otherOrg := id.OrgID(uuid.New())
	res := authz.TaxpayerResource(id.TaxpayerID(uuid.New()), otherOrg)

	_, err := s.enforcer.Enforce(context.Background(), "token", authz.ActionRead, res, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	records := s.store.All()
	s.Require().Len(records, 1)
	s.Equal(audit.OutcomeDenied, records[0].Outcome)
	s.Equal(authz.ReasonCrossOrg, records[0].Reason)
	s.Equal(otherOrg, records[0].OrgID)
}

func (s *EnforcerSuite) TestEnforce_RejectedAuthenticationLeavesNoRecord() {
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "bad-token").
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	executed := false

	_, err := s.enforcer.Enforce(context.Background(), "bad-token", authz.ActionList, authz.TaxpayerCollection(s.orgID), func(ctx context.Context) (any, error) {
		executed = true
		return nil, nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.False(executed)
	s.Empty(s.store.All(), "authentication failures are not audited by default")
}

func (s *EnforcerSuite) TestEnforce_AuthFailureAuditingOptIn() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := authz.NewResolver(s.mockVerifier, s.mockIdentities, authz.WithResolverLogger(logger))
	enforcer := authz.NewEnforcer(
		resolver,
		authz.NewEngine(authz.DefaultRules()),
		s.recorder,
		authz.WithEnforcerLogger(logger),
		authz.WithAuthFailureAuditing(),
	)
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "bad-token").
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))

	_, err := enforcer.Enforce(context.Background(), "bad-token", authz.ActionList, authz.TaxpayerCollection(s.orgID), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	s.Require().Error(err)

	records := s.store.All()
	s.Require().Len(records, 1)
	s.Equal(audit.OutcomeRejected, records[0].Outcome)
	s.Equal(string(dErrors.CodeUnauthorized), records[0].Reason)
	s.True(records[0].PrincipalID.IsNil(), "no principal was established")
}

func (s *EnforcerSuite) TestEnforce_PanicIsAuditedAndRedacted() {
	s.expectPrincipal("token", authz.RoleAccountant)
	res := authz.TaxpayerCollection(s.orgID)

	result, err := s.enforcer.Enforce(context.Background(), "token", authz.ActionList, res, func(ctx context.Context) (any, error) {
		panic("nil map write in listTaxpayers")
	})
	s.Require().Error(err)
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.NotContains(err.Error(), "nil map write", "panic detail must not reach the caller")

	records := s.store.All()
	s.Require().Len(records, 2)
	s.Equal(audit.OutcomeAllowed, records[0].Outcome)
	s.Equal(audit.OutcomeFailed, records[1].Outcome)
	s.Equal("panic", records[1].Reason)
}

func (s *EnforcerSuite) TestEnforce_AdminBypassesRuleTable() {
	principal := authz.Principal{
		UserID:   id.UserID(uuid.New()),
		Role:     authz.RoleAdmin,
		Active:   true,
		Verified: true,
	}
	claims := &authz.TokenClaims{UserID: principal.UserID, Role: authz.RoleAdmin, JTI: uuid.NewString()}
	s.mockVerifier.EXPECT().Verify(gomock.Any(), "admin-token").Return(claims, nil)
	s.mockIdentities.EXPECT().LookupPrincipal(gomock.Any(), principal.UserID).Return(principal, nil)

	result, err := s.enforcer.Enforce(context.Background(), "admin-token", authz.ActionList, authz.AuditLogCollection(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	s.Require().NoError(err)
	s.Equal(42, result)

	records := s.store.All()
	s.Require().Len(records, 2)
	s.Equal(audit.OutcomeAllowed, records[0].Outcome)
	s.Equal(audit.OutcomeSucceeded, records[1].Outcome)
}

func (s *EnforcerSuite) TestEnforceTyped() {
	s.expectPrincipal("token", authz.RoleAccountant)

	type listing struct{ Total int }
	result, err := authz.Enforce(context.Background(), s.enforcer, "token", authz.ActionList, authz.TaxpayerCollection(s.orgID), func(ctx context.Context) (listing, error) {
		return listing{Total: 7}, nil
	})
	s.Require().NoError(err)
	s.Equal(7, result.Total)
}

func (s *EnforcerSuite) TestEnforceTyped_ErrorReturnsZeroValue() {
	s.expectPrincipal("token", authz.RoleEmployer)
	res := authz.TaxpayerResource(id.TaxpayerID(uuid.New()), s.orgID)

	result, err := authz.Enforce(context.Background(), s.enforcer, "token", authz.ActionDelete, res, func(ctx context.Context) (string, error) {
		return "never", nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Empty(result)
}
