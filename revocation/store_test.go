package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, "rvk"), mr
}

func TestRedisStoreBlacklistAndLookup(t *testing.T) {
	s, _ := newRedisTestStore(t)
	ctx := context.Background()

	if err := s.Blacklist(ctx, "h1", time.Minute); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	revoked, err := s.IsBlacklisted(ctx, "h1")
	if err != nil || !revoked {
		t.Fatalf("IsBlacklisted = %v, %v; want true", revoked, err)
	}
	revoked, err = s.IsBlacklisted(ctx, "h2")
	if err != nil || revoked {
		t.Fatalf("unknown hash = %v, %v; want false", revoked, err)
	}
}

func TestRedisStoreEntriesExpire(t *testing.T) {
	s, mr := newRedisTestStore(t)
	ctx := context.Background()

	if err := s.Blacklist(ctx, "h1", time.Minute); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	mr.FastForward(61 * time.Second)
	revoked, err := s.IsBlacklisted(ctx, "h1")
	if err != nil || revoked {
		t.Fatalf("expired entry = %v, %v; want false", revoked, err)
	}
}

func TestRedisStoreNonPositiveTTLIsNoOp(t *testing.T) {
	s, mr := newRedisTestStore(t)

	if err := s.Blacklist(context.Background(), "h1", -time.Second); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}
	if got := len(mr.Keys()); got != 0 {
		t.Fatalf("expected no keys, got %d", got)
	}
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s, mr := newRedisTestStore(t)

	if err := s.Blacklist(context.Background(), "h1", time.Minute); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}
	if !mr.Exists("rvk:h1") {
		t.Fatalf("expected key rvk:h1, have %v", mr.Keys())
	}
}

func TestRedisStoreWrapsBackendFailures(t *testing.T) {
	s, mr := newRedisTestStore(t)
	mr.Close()

	if err := s.Blacklist(context.Background(), "h1", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.IsBlacklisted(context.Background(), "h1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
