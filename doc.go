// Package authcore provides an embeddable credential and session
// lifecycle engine: JWT access tokens, rotating opaque refresh tokens,
// an out-of-band revocation registry, purpose-tagged one-time codes, and
// a multi-method two-factor state machine with single-use recovery codes.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after construction
// through [New].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Config], and
// value types (TokenPair, LoginResult, MetricsSnapshot, etc.).
// Persistence and delivery are integration seams: callers supply a
// [CredentialStore] over their user database and an [EmailSender] over
// their mail provider. Cryptographic plumbing lives under internal/ and
// is never exported.
//
// # What this package must NOT do
//
//   - Persist raw secrets. Passwords, refresh tokens, one-time codes,
//     and recovery codes are stored only as hashes; raw values exist in
//     transit exactly once.
//   - Expose Redis clients or store internals in its public API.
//   - Perform I/O outside of Engine methods.
package authcore
