package authcore

import (
	"errors"
	"time"
)

// Config groups every tunable section of the engine. Instances are
// validated once inside [New] and treated as immutable afterwards.
type Config struct {
	JWT        JWTConfig
	Refresh    RefreshConfig
	OTP        OTPConfig
	TwoFactor  TwoFactorConfig
	Email      EmailConfig
	Revocation RevocationConfig
	Account    AccountConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token minting.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	SigningKey    []byte
	PublicKey     []byte // ed25519 only
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls opaque refresh-token rotation. Only the SHA-256
// hash of a refresh token is ever persisted.
type RefreshConfig struct {
	TTL         time.Duration // plain login, default 24h
	RememberTTL time.Duration // "remember me" / "remember device", default 30d
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time numeric codes shared by email verification,
// password reset, phone verification, and email/SMS two-factor login.
type OTPConfig struct {
	Digits int           // default 6
	TTL    time.Duration // default 15m
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls the 2FA state machine and the TOTP parameters
// used by the authenticator method.
type TwoFactorConfig struct {
	Issuer            string // otpauth:// issuer label
	Digits            int    // TOTP digits, default 6
	Period            int    // TOTP step seconds, default 30
	Skew              int    // accepted steps either side of now, default 1
	Algorithm         string // "SHA1" (default), "SHA256", "SHA512"
	RecoveryCodeCount int    // default 10
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig controls outbound dispatch policy. Dispatch is asynchronous
// and fire-and-forget by default: the triggering state change commits even
// when delivery fails, and the failure is audited. FailClosed switches to
// synchronous dispatch and surfaces ErrEmailDispatchFailed.
type EmailConfig struct {
	FailClosed bool
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the access-token blacklist.
type RevocationConfig struct {
	KeyPrefix string // redis key prefix, default "rvk"
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration and login gating.
type AccountConfig struct {
	RequireVerifiedEmail bool
	DefaultRole          string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the preset the examples and tests start from:
// 15-minute access tokens, 1-day/30-day refresh TTLs, 6-digit OTPs with a
// 15-minute window, RFC 6238 TOTP at 30s/±1 step, 10 recovery codes.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Refresh: RefreshConfig{
			TTL:         24 * time.Hour,
			RememberTTL: 30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    15 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:            "authcore",
			Digits:            6,
			Period:            30,
			Skew:              1,
			Algorithm:         "SHA1",
			RecoveryCodeCount: 10,
		},
		Revocation: RevocationConfig{
			KeyPrefix: "rvk",
		},
		Account: AccountConfig{
			RequireVerifiedEmail: true,
			DefaultRole:          "user",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	if len(c.JWT.SigningKey) == 0 {
		return ErrSigningKeyMissing
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access ttl must be positive")
	}
	if c.Refresh.TTL <= 0 || c.Refresh.RememberTTL <= 0 {
		return errors.New("refresh ttls must be positive")
	}
	if c.Refresh.RememberTTL < c.Refresh.TTL {
		return errors.New("remember ttl must not be shorter than base refresh ttl")
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TwoFactor.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 4 {
		return errors.New("totp skew must be between 0 and 4 steps")
	}
	if c.TwoFactor.RecoveryCodeCount <= 0 {
		return errors.New("recovery code count must be positive")
	}
	return nil
}
