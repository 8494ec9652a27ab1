//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxgate/internal/taxpayer/models"
	"taxgate/internal/taxpayer/store"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
	"taxgate/pkg/testutil/containers"
)

type PostgresTaxpayerStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	orgID    id.OrgID
}

func TestPostgresTaxpayerStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTaxpayerStoreSuite))
}

func (s *PostgresTaxpayerStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresTaxpayerStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "taxpayers")
	s.Require().NoError(err)
	s.orgID = id.OrgID(uuid.New())
}

func (s *PostgresTaxpayerStoreSuite) newTaxpayer(tin string) models.Taxpayer {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.Taxpayer{
		ID:        id.TaxpayerID(uuid.New()),
		OrgID:     s.orgID,
		TIN:       tin,
		FirstName: "Amara",
		LastName:  "Okafor",
		Email:     "amara@example.com",
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresTaxpayerStoreSuite) TestCreateAndFindByTIN() {
	ctx := context.Background()
	tp := s.newTaxpayer("123456789")

	s.Require().NoError(s.store.Create(ctx, tp))

	found, err := s.store.FindByTIN(ctx, s.orgID, "123456789")
	s.Require().NoError(err)
	s.Equal(tp.ID, found.ID)
	s.Equal(models.StatusPending, found.Status)
	s.Nil(found.VerifiedAt)
	s.True(found.VerifiedBy.IsNil())
}

func (s *PostgresTaxpayerStoreSuite) TestCreate_DuplicateTINSameOrg() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newTaxpayer("123456789")))

	err := s.store.Create(ctx, s.newTaxpayer("123456789"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresTaxpayerStoreSuite) TestCreate_SameTINDifferentOrg() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newTaxpayer("123456789")))

	other := s.newTaxpayer("123456789")
	other.OrgID = id.OrgID(uuid.New())
	s.NoError(s.store.Create(ctx, other))
}

func (s *PostgresTaxpayerStoreSuite) TestSoftDelete() {
	ctx := context.Background()
	tp := s.newTaxpayer("123456789")
	s.Require().NoError(s.store.Create(ctx, tp))

	at := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.SoftDelete(ctx, tp.ID, at))

	_, err := s.store.FindByID(ctx, tp.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// The TIN is free for reuse once the old row is soft-deleted.
	s.NoError(s.store.Create(ctx, s.newTaxpayer("123456789")))

	err = s.store.SoftDelete(ctx, tp.ID, at)
	s.Require().ErrorIs(err, sentinel.ErrNotFound, "double delete is a not-found")
}

func (s *PostgresTaxpayerStoreSuite) TestUpdateVerification() {
	ctx := context.Background()
	tp := s.newTaxpayer("123456789")
	s.Require().NoError(s.store.Create(ctx, tp))

	now := time.Now().UTC().Truncate(time.Microsecond)
	verifier := id.UserID(uuid.New())
	tp.Status = models.StatusVerified
	tp.VerifiedAt = &now
	tp.VerifiedBy = verifier
	tp.UpdatedAt = now
	s.Require().NoError(s.store.Update(ctx, tp))

	found, err := s.store.FindByID(ctx, tp.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, found.Status)
	s.Require().NotNil(found.VerifiedAt)
	s.WithinDuration(now, *found.VerifiedAt, time.Millisecond)
	s.Equal(verifier, found.VerifiedBy)
}

func (s *PostgresTaxpayerStoreSuite) TestListByOrg_FilterAndPagination() {
	ctx := context.Background()
	first := s.newTaxpayer("111111111")
	now := time.Now().UTC().Truncate(time.Microsecond)
	first.Status = models.StatusVerified
	first.VerifiedAt = &now
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, s.newTaxpayer("222222222")))
	s.Require().NoError(s.store.Create(ctx, s.newTaxpayer("333333333")))

	verified, err := s.store.ListByOrg(ctx, s.orgID, models.ListFilter{Status: models.StatusVerified})
	s.Require().NoError(err)
	s.Require().Len(verified, 1)
	s.Equal(first.ID, verified[0].ID)

	page, err := s.store.ListByOrg(ctx, s.orgID, models.ListFilter{Limit: 2})
	s.Require().NoError(err)
	s.Len(page, 2)

	rest, err := s.store.ListByOrg(ctx, s.orgID, models.ListFilter{Offset: 2})
	s.Require().NoError(err)
	s.Len(rest, 1)
}

func (s *PostgresTaxpayerStoreSuite) TestCounts() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	first := s.newTaxpayer("111111111")
	first.Status = models.StatusVerified
	first.VerifiedAt = &now
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, s.newTaxpayer("222222222")))

	total, err := s.store.CountByOrg(ctx, s.orgID)
	s.Require().NoError(err)
	s.Equal(2, total)

	pending, err := s.store.CountByOrgAndStatus(ctx, s.orgID, models.StatusPending)
	s.Require().NoError(err)
	s.Equal(1, pending)
}
