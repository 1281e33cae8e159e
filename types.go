package authcore

import (
	"context"
	"strings"
	"time"
)

// TwoFactorMethod is the closed set of second factors. Dispatch is by
// enum variant, not free-form string, so there is no case-sensitivity or
// typo surface.
type TwoFactorMethod uint8

const (
	// MethodNone means two-factor authentication is not configured.
	MethodNone TwoFactorMethod = iota
	// MethodEmail delivers a one-time code to the confirmed email address.
	MethodEmail
	// MethodSMS delivers a one-time code to the confirmed phone number.
	MethodSMS
	// MethodAuthenticator uses RFC 6238 TOTP against a shared secret.
	MethodAuthenticator
)

// String returns the lower-case wire name of the method.
func (m TwoFactorMethod) String() string {
	switch m {
	case MethodEmail:
		return "email"
	case MethodSMS:
		return "sms"
	case MethodAuthenticator:
		return "authenticator"
	default:
		return "none"
	}
}

// ParseTwoFactorMethod maps a wire name onto the enum. Comparison is
// case-insensitive; unknown names fail with ErrTwoFactorMethodInvalid.
func ParseTwoFactorMethod(s string) (TwoFactorMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return MethodEmail, nil
	case "sms":
		return MethodSMS, nil
	case "authenticator":
		return MethodAuthenticator, nil
	default:
		return MethodNone, ErrTwoFactorMethodInvalid
	}
}

// OTPPurpose tags an outstanding one-time code. At most one challenge per
// (user, purpose) pair is live at any time; reissuing overwrites it.
type OTPPurpose uint8

const (
	// PurposeEmailVerify confirms ownership of an email address.
	PurposeEmailVerify OTPPurpose = iota
	// PurposePasswordReset authorizes a password reset.
	PurposePasswordReset
	// PurposePhoneVerify confirms ownership of a phone number.
	PurposePhoneVerify
	// PurposeTwoFactorLogin completes an email/SMS two-factor login.
	PurposeTwoFactorLogin
)

func (p OTPPurpose) String() string {
	switch p {
	case PurposePasswordReset:
		return "password_reset"
	case PurposePhoneVerify:
		return "phone_verify"
	case PurposeTwoFactorLogin:
		return "twofactor_login"
	default:
		return "email_verify"
	}
}

// UserCredential is the per-user aggregate the engine mutates through a
// [CredentialStore]. Secrets are stored hashed: OTPHash and RefreshHash
// are SHA-256 digests, RecoveryCodeHashes holds one digest per unused
// code. Raw codes and tokens exist only in transit.
type UserCredential struct {
	ID          string
	Email       string
	DisplayName string
	Role        string

	// PendingEmail stages an address change until its OTP is confirmed.
	// The confirmed Email field is swapped only on successful verification.
	PendingEmail  string
	EmailVerified bool
	PhoneVerified bool

	PasswordHash string

	// At most one outstanding OTP challenge per purpose. A nil OTPHash
	// means no challenge is live.
	OTPHash      []byte
	OTPPurpose   OTPPurpose
	OTPExpiresAt time.Time

	// Refresh rotation state. A nil RefreshHash means no refresh token is
	// outstanding for this user.
	RefreshHash      []byte
	RefreshExpiresAt time.Time

	TwoFactorMethod    TwoFactorMethod
	TwoFactorSecret    []byte
	TwoFactorEnabled   bool
	TwoFactorEnabledAt time.Time
	RecoveryCodeHashes [][32]byte

	CreatedAt time.Time
}

// twoFactorPending reports the PendingSetup state: a method and secret
// exist but verification has not completed.
func (c *UserCredential) twoFactorPending() bool {
	return !c.TwoFactorEnabled && c.TwoFactorMethod != MethodNone && len(c.TwoFactorSecret) > 0
}

// CredentialStore is the integration seam to the caller's user database.
// Implementations must return ErrUserNotFound for unknown users and
// ErrEmailTaken for duplicate addresses on Create. The engine serializes
// read-modify-write cycles per user, so Update is never called
// concurrently for the same aggregate.
type CredentialStore interface {
	Create(ctx context.Context, cred *UserCredential) error
	GetByID(ctx context.Context, userID string) (*UserCredential, error)
	GetByEmail(ctx context.Context, email string) (*UserCredential, error)
	Update(ctx context.Context, cred *UserCredential) error
}

// CredentialVerifier hashes and checks passwords. [password.Argon2] is the
// shipped implementation; any PHC-style verifier can be substituted.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// EmailSender delivers one-time codes and notifications. Dispatch runs
// outside the user lock; see [EmailConfig] for the failure policy.
type EmailSender interface {
	Send(to, subject, body string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock [Clock] used by default.
func SystemClock() Clock { return systemClock{} }

// TokenPair bundles a signed access token with the raw (unhashed) refresh
// token. The refresh token is shown to the caller exactly once.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login]. When TwoFactorRequired is
// set the token fields are empty and the login must complete through
// [Engine.VerifyLogin2FA].
type LoginResult struct {
	TokenPair

	TwoFactorRequired bool
	TwoFactorMethod   TwoFactorMethod
}

// Setup2FAResult is returned by [Engine.Setup2FA]. Secret is the
// base32-encoded shared secret; QRCodeURI is set only for the
// authenticator method; OTPIssued reports that a code was dispatched for
// the email/SMS methods.
type Setup2FAResult struct {
	Method    TwoFactorMethod
	Secret    string
	QRCodeURI string
	OTPIssued bool
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}
