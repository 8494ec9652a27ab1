//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxgate/internal/identity/store/revocation"
	"taxgate/pkg/testutil/containers"
)

type RedisRevocationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *revocation.RedisStore
}

func TestRedisRevocationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisRevocationSuite))
}

func (s *RedisRevocationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = revocation.NewRedisStore(s.redis.Client)
}

func (s *RedisRevocationSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func (s *RedisRevocationSuite) TestRevokeAndCheck() {
	ctx := context.Background()
	jti := uuid.NewString()

	revoked, err := s.store.IsTokenRevoked(ctx, jti)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.store.Revoke(ctx, jti, time.Minute))

	revoked, err = s.store.IsTokenRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *RedisRevocationSuite) TestEntryExpiresWithTokenTTL() {
	ctx := context.Background()
	jti := uuid.NewString()

	s.Require().NoError(s.store.Revoke(ctx, jti, 100*time.Millisecond))

	s.Require().Eventually(func() bool {
		revoked, err := s.store.IsTokenRevoked(ctx, jti)
		return err == nil && !revoked
	}, 2*time.Second, 50*time.Millisecond, "revocation entry outlives the token TTL")
}

func (s *RedisRevocationSuite) TestRevocationsAreIndependent() {
	ctx := context.Background()
	revokedJTI := uuid.NewString()
	s.Require().NoError(s.store.Revoke(ctx, revokedJTI, time.Minute))

	otherRevoked, err := s.store.IsTokenRevoked(ctx, uuid.NewString())
	s.Require().NoError(err)
	s.False(otherRevoked)
}
