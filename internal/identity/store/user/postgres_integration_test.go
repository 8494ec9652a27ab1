//go:build integration

package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxgate/internal/authz"
	"taxgate/internal/identity/models"
	userstore "taxgate/internal/identity/store/user"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
	"taxgate/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *userstore.PostgresStore
}

func TestPostgresUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = userstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "users")
	s.Require().NoError(err)
}

func newTestUser(email string) models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.User{
		ID:           id.UserID(uuid.New()),
		Email:        email,
		PasswordHash: "$2a$10$not-a-real-hash",
		FullName:     "Amara Okafor",
		Role:         authz.RoleAccountant,
		OrgID:        id.OrgID(uuid.New()),
		Active:       true,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresUserStoreSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	user := newTestUser("amara@example.com")

	s.Require().NoError(s.store.Create(ctx, user))

	found, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)
	s.Equal(user.Email, found.Email)
	s.Equal(user.Role, found.Role)
	s.Equal(user.OrgID, found.OrgID)
	s.True(found.Active)
	s.True(found.Verified)
}

func (s *PostgresUserStoreSuite) TestFindByEmail_CaseInsensitive() {
	ctx := context.Background()
	user := newTestUser("amara@example.com")
	s.Require().NoError(s.store.Create(ctx, user))

	found, err := s.store.FindByEmail(ctx, "AMARA@Example.COM")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)
}

func (s *PostgresUserStoreSuite) TestCreate_DuplicateEmail() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newTestUser("amara@example.com")))

	err := s.store.Create(ctx, newTestUser("amara@example.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresUserStoreSuite) TestFindByID_NotFound() {
	_, err := s.store.FindByID(context.Background(), id.UserID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestUpdate() {
	ctx := context.Background()
	user := newTestUser("amara@example.com")
	s.Require().NoError(s.store.Create(ctx, user))

	user.FullName = "Amara N. Okafor"
	user.Active = false
	user.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Update(ctx, user))

	found, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("Amara N. Okafor", found.FullName)
	s.False(found.Active)
}

func (s *PostgresUserStoreSuite) TestUpdate_NotFound() {
	err := s.store.Update(context.Background(), newTestUser("ghost@example.com"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestNilOrgIDRoundTrip() {
	ctx := context.Background()
	admin := newTestUser("admin@example.com")
	admin.Role = authz.RoleAdmin
	admin.OrgID = id.OrgID{}
	s.Require().NoError(s.store.Create(ctx, admin))

	found, err := s.store.FindByID(ctx, admin.ID)
	s.Require().NoError(err)
	s.True(found.OrgID.IsNil())
}
