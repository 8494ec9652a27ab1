// Package revocation tracks revoked token IDs until their natural expiry.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var revocationCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "taxgate_token_revocation_check_duration_ms",
	Help:    "Latency of token revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Redis key prefix for revoked token IDs.
const revokedTokenKeyPrefix = "trl:jti:"

// RedisStore is the Redis-backed revocation list, shared across instances.
// Keys carry a TTL matching the token's remaining lifetime, so the list
// cleans itself up.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Revoke marks a token ID as revoked for ttl.
func (s *RedisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	// Key existence is the marker; the value is irrelevant.
	return s.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err()
}

// IsTokenRevoked reports whether the token ID is on the revocation list.
// Implements the authorization layer's RevocationChecker; an error here makes
// the resolver fail closed.
func (s *RedisStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	defer func() {
		revocationCheckDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if jti == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, revokedTokenKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
