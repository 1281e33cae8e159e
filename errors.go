package authcore

import "errors"

var (
	// ErrUserNotFound is returned when the credential store has no record
	// for the requested user or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when a registration or email change targets
	// an address that already belongs to another credential.
	ErrEmailTaken = errors.New("email already in use")
	// ErrEmailUnverified gates login when email verification is required.
	ErrEmailUnverified = errors.New("email not verified")
	// ErrPhoneUnverified gates SMS two-factor enrollment.
	ErrPhoneUnverified = errors.New("phone not verified")

	// ErrTokenInvalid is returned for access tokens that fail signature or
	// claim validation.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrTokenExpired is returned for access tokens past their expiry.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenRevoked is returned for access tokens found in the
	// revocation registry.
	ErrTokenRevoked = errors.New("access token revoked")

	// ErrRefreshInvalid is returned when a submitted refresh token does not
	// match the stored hash for the user.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned when the stored refresh expiry has
	// passed.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrCodeInvalid is returned on OTP, TOTP, or recovery-code mismatch.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrCodeExpired is returned when an OTP is checked at or after its
	// expiry instant. The boundary is exclusive: exactly-at-expiry counts
	// as expired.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrNoPendingCode is returned when no OTP challenge is outstanding for
	// the (user, purpose) pair.
	ErrNoPendingCode = errors.New("no pending verification code")

	// ErrTwoFactorRequired signals that login must complete through
	// VerifyLogin2FA.
	ErrTwoFactorRequired = errors.New("two-factor verification required")
	// ErrTwoFactorNotEnabled is returned by operations that need an enabled
	// second factor.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTwoFactorNotPending is returned by VerifySetup2FA when no setup is
	// in progress.
	ErrTwoFactorNotPending = errors.New("no two-factor setup in progress")
	// ErrTwoFactorAlreadyEnabled is returned by Setup2FA while a second
	// factor is active; it must be disabled before re-enrollment.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorMethodInvalid is returned for a method outside the closed
	// enum.
	ErrTwoFactorMethodInvalid = errors.New("invalid two-factor method")

	// ErrSigningKeyMissing is a construction-time configuration error: the
	// engine refuses to start without signing material.
	ErrSigningKeyMissing = errors.New("jwt signing key missing")
	// ErrEmailDispatchFailed is returned only when Email.FailClosed is set;
	// otherwise delivery failures are audited and the state change stands.
	ErrEmailDispatchFailed = errors.New("email dispatch failed")
	// ErrRevocationUnavailable wraps revocation backend failures.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
	// ErrEngineNotReady is returned when the engine or a required
	// dependency was not wired.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrPendingEmailMissing is returned by ConfirmEmailChange when no
	// staged address exists.
	ErrPendingEmailMissing = errors.New("no pending email change")
)
