// Package password provides the argon2id credential verifier used by the
// authcore engine. The engine only depends on the Hash/Verify pair, so
// deployments with an existing hasher can substitute their own.
package password
