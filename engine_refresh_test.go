package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRotateRefreshTokenIssuesFreshPair(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	rotated, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false)
	if err != nil {
		t.Fatalf("RotateRefreshToken failed: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a new refresh token")
	}
	if _, err := env.engine.VerifyAccess(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("rotated access token invalid: %v", err)
	}
}

func TestRotateRefreshTokenRejectsReplay(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}
	if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on replay, got %v", err)
	}
}

func TestRotateRefreshTokenExactlyOneWinner(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", wins)
	}
}

func TestRotateRefreshTokenExpired(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	env.clock.Advance(env.engine.config.Refresh.TTL)
	if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
}

func TestRotateRefreshTokenMalformed(t *testing.T) {
	env := newTestEngine(t)

	for _, raw := range []string{"", "no-separator", ".leading", "trailing."} {
		if _, err := env.engine.RotateRefreshToken(context.Background(), raw, false); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("RotateRefreshToken(%q): expected ErrRefreshInvalid, got %v", raw, err)
		}
	}
}

func TestRotateRefreshTokenUnknownUser(t *testing.T) {
	env := newTestEngine(t)

	if _, err := env.engine.RotateRefreshToken(context.Background(), "ghost-user.secret", false); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for unknown user, got %v", err)
	}
}

func TestRotateRefreshTokenSplicedUserID(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	bobID := env.registerVerified(t, "bob@example.com", "hunter2hunter2")
	pair := env.login(t, "alice@example.com", "correct-horse")

	// Re-target alice's secret at bob's aggregate; the stored hash covers
	// the full raw token so the splice must not match.
	i := strings.LastIndexByte(pair.RefreshToken, '.')
	spliced := bobID + pair.RefreshToken[i:]
	if _, err := env.engine.RotateRefreshToken(context.Background(), spliced, false); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for spliced token, got %v", err)
	}
}

func TestRefreshRememberTTL(t *testing.T) {
	env := newTestEngine(t)
	userID := env.registerVerified(t, "alice@example.com", "correct-horse")

	if _, err := env.engine.IssueTokens(context.Background(), userID, true); err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	remembered := env.store.get(t, userID).RefreshExpiresAt

	if _, err := env.engine.IssueTokens(context.Background(), userID, false); err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	plain := env.store.get(t, userID).RefreshExpiresAt

	wantDelta := env.engine.config.Refresh.RememberTTL - env.engine.config.Refresh.TTL
	if got := remembered.Sub(plain); got != wantDelta {
		t.Fatalf("remember TTL delta = %v, want %v", got, wantDelta)
	}
}

func TestRefreshTokenSurvivesJustBeforeExpiry(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	env.clock.Advance(env.engine.config.Refresh.TTL - time.Second)
	if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); err != nil {
		t.Fatalf("rotation one second before expiry failed: %v", err)
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	env := newTestEngine(t)
	userID := env.registerVerified(t, "alice@example.com", "correct-horse")
	pair := env.login(t, "alice@example.com", "correct-horse")

	if err := env.engine.RevokeRefreshToken(context.Background(), userID); err != nil {
		t.Fatalf("RevokeRefreshToken failed: %v", err)
	}
	if _, err := env.engine.RotateRefreshToken(context.Background(), pair.RefreshToken, false); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after revoke, got %v", err)
	}
}
