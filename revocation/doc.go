// Package revocation tracks access tokens invalidated before their
// natural expiry. A signed token stays cryptographically valid until its
// exp claim, so logout and credential changes need this out-of-band
// registry; entries live no longer than the token they shadow.
//
// RedisStore relies on native per-entry TTL. MemoryStore pairs lazy
// expiry with a periodic sweep for redis-less deployments.
package revocation
