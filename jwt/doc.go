// Package jwt mints and verifies the short-lived signed access tokens the
// authcore engine issues. HMAC-SHA256 with a shared symmetric key is the
// default; Ed25519 is available for split sign/verify deployments.
//
// Verification is stateless: signature, issuer, and lifetime only.
// Revocation is the engine's concern and lives in the revocation package.
package jwt
