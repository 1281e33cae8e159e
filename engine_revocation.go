package authcore

import (
	"context"
	"errors"
)

// RevokeAccessToken blacklists the token until its natural expiry. The
// registry entry's TTL is copied from the token, so the blacklist never
// outlives the tokens it guards. Revoking an already-expired token is a
// no-op.
func (e *Engine) RevokeAccessToken(ctx context.Context, rawToken string) error {
	exp, err := e.jwtManager.ExpiryOf(rawToken)
	if err != nil {
		return ErrTokenInvalid
	}

	ttl := exp.Sub(e.clock.Now())
	if ttl <= 0 {
		return nil
	}

	if err := e.revocations.Blacklist(ctx, tokenDigest(rawToken), ttl); err != nil {
		return errors.Join(ErrRevocationUnavailable, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, "", nil, map[string]string{"kind": "access"})
	return nil
}

// IsRevoked reports whether the raw access token has been blacklisted. A
// backend failure surfaces as ErrRevocationUnavailable rather than a
// silent false.
func (e *Engine) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	revoked, err := e.revocations.IsBlacklisted(ctx, tokenDigest(rawToken))
	if err != nil {
		return false, errors.Join(ErrRevocationUnavailable, err)
	}
	return revoked, nil
}
