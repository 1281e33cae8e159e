// Package internal holds security-sensitive primitives shared by the
// authcore engine: CSPRNG code and secret generation, token hashing, and
// the striped per-user locks that serialize aggregate mutations. All
// randomness comes from crypto/rand; nothing in this package persists
// state.
package internal
