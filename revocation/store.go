package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps backend failures so callers can distinguish an
// unreachable registry from a clean miss.
var ErrUnavailable = errors.New("revocation store unavailable")

// Store records access tokens invalidated before their natural expiry.
// Entries are keyed by the SHA-256 hex digest of the raw token and carry
// a TTL copied from the token's remaining lifetime; once that elapses the
// token is cryptographically dead anyway and the entry may vanish.
type Store interface {
	Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)
}

// RedisStore is the production Store. Redis expires entries natively, so
// no sweep task exists: memory stays bounded by the set of
// currently-valid-but-revoked tokens.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. prefix namespaces the keys;
// pass the configured Revocation.KeyPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rvk"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

// Blacklist inserts the entry with the remaining-lifetime TTL. A
// non-positive TTL is a no-op: the token is already expired.
func (s *RedisStore) Blacklist(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(tokenHash), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsBlacklisted is the hot-path lookup, one EXISTS per authenticated
// request.
func (s *RedisStore) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
