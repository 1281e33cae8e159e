package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/authcore-io/authcore/internal"
)

// Refresh tokens are self-locating: the opaque secret is prefixed with the
// owning user id so rotation needs no secondary index on the store. The
// stored hash covers the whole raw token, so a token spliced onto another
// user id never matches.
func encodeRefreshToken(userID, secret string) string {
	return userID + "." + secret
}

func decodeRefreshToken(raw string) (string, bool) {
	i := strings.LastIndexByte(raw, '.')
	if i <= 0 || i == len(raw)-1 {
		return "", false
	}
	return raw[:i], true
}

// RotateRefreshToken exchanges a live refresh token for a fresh token
// pair. Exactly one rotation wins per token: the submitted token is
// compared against the stored hash under the user's lock, and a match
// immediately overwrites the hash, so a replay of the same raw token
// fails with ErrRefreshInvalid. Expiry is checked before rotation; an
// expired token fails with ErrRefreshExpired and leaves state unchanged.
func (e *Engine) RotateRefreshToken(ctx context.Context, rawToken string, remember bool) (TokenPair, error) {
	userID, ok := decodeRefreshToken(rawToken)
	if !ok {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshRejected, false, "", ErrRefreshInvalid, map[string]string{"reason": "malformed"})
		return TokenPair{}, ErrRefreshInvalid
	}

	var pair TokenPair
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if len(cred.RefreshHash) == 0 {
			return ErrRefreshInvalid
		}
		submitted := internal.HashToken(rawToken)
		if subtle.ConstantTimeCompare(submitted, cred.RefreshHash) != 1 {
			return ErrRefreshInvalid
		}
		if !e.clock.Now().Before(cred.RefreshExpiresAt) {
			return ErrRefreshExpired
		}

		var issueErr error
		pair, issueErr = e.issueTokenPair(cred, remember)
		return issueErr
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			err = ErrRefreshInvalid
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshRejected, false, userID, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshRotated, true, userID, nil, nil)
	return pair, nil
}

// RevokeRefreshToken clears the user's outstanding refresh token, ending
// silent session renewal without touching issued access tokens.
func (e *Engine) RevokeRefreshToken(ctx context.Context, userID string) error {
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		cred.RefreshHash = nil
		cred.RefreshExpiresAt = time.Time{}
		return nil
	})
	e.emitAudit(ctx, auditEventTokenRevoked, err == nil, userID, err, map[string]string{"kind": "refresh"})
	return err
}
