package authcore

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/authcore-io/authcore/internal"
)

// Setup2FA stages second-factor enrollment for the given method. Nothing
// is enabled until [Engine.VerifySetup2FA] proves the user controls the
// factor. For the authenticator method the result carries the base32
// secret and the otpauth:// URI; for email and SMS a verification code is
// issued and dispatched instead.
func (e *Engine) Setup2FA(ctx context.Context, userID string, method TwoFactorMethod) (*Setup2FAResult, error) {
	if method != MethodEmail && method != MethodSMS && method != MethodAuthenticator {
		return nil, ErrTwoFactorMethodInvalid
	}

	var (
		result Setup2FAResult
		code   string
		to     string
	)
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if cred.TwoFactorEnabled {
			return ErrTwoFactorAlreadyEnabled
		}
		if method == MethodEmail && !cred.EmailVerified {
			return ErrEmailUnverified
		}
		if method == MethodSMS && !cred.PhoneVerified {
			return ErrPhoneUnverified
		}

		secret, secretErr := internal.NewTwoFactorSecret(totpSecretBytes)
		if secretErr != nil {
			return secretErr
		}

		// Restarting setup replaces any earlier pending secret wholesale.
		cred.TwoFactorMethod = method
		cred.TwoFactorSecret = secret
		cred.TwoFactorEnabledAt = time.Time{}

		result = Setup2FAResult{Method: method}
		switch method {
		case MethodAuthenticator:
			encoded := e.totp.EncodeSecret(secret)
			result.Secret = encoded
			result.QRCodeURI = e.totp.ProvisionURI(encoded, cred.Email)
		default:
			otp, issueErr := e.issueOTP(cred, PurposeTwoFactorLogin)
			if issueErr != nil {
				return issueErr
			}
			code = otp
			to = cred.Email
			result.OTPIssued = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorSetup, true, userID, nil, map[string]string{"method": method.String()})
	if code != "" {
		e.metricInc(MetricOTPIssued)
		if err := e.dispatchEmail(ctx, userID, to, "Confirm two-factor setup",
			"Your two-factor setup code is "+code+"."); err != nil {
			return nil, err
		}
	}

	return &result, nil
}

// VerifySetup2FA completes a staged enrollment. The submitted code must
// come from the factor being enabled: a TOTP code for the authenticator
// method, the dispatched OTP otherwise. On success 2FA becomes active and
// a fresh recovery-code set is returned; the raw codes are shown exactly
// once.
func (e *Engine) VerifySetup2FA(ctx context.Context, userID, code string) ([]string, error) {
	var rawCodes []string
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if cred.TwoFactorEnabled {
			return ErrTwoFactorAlreadyEnabled
		}
		if !cred.twoFactorPending() {
			return ErrTwoFactorNotPending
		}

		if verifyErr := e.checkSecondFactor(cred, code); verifyErr != nil {
			return verifyErr
		}

		codes, hashes, genErr := e.newRecoverySet()
		if genErr != nil {
			return genErr
		}

		cred.TwoFactorEnabled = true
		cred.TwoFactorEnabledAt = e.clock.Now()
		cred.RecoveryCodeHashes = hashes
		rawCodes = codes
		return nil
	})
	if err != nil {
		e.metricInc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditEventTwoFactorLoginFail, false, userID, err, map[string]string{"stage": "setup"})
		return nil, err
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, userID, nil, nil)
	e.emitAudit(ctx, auditEventRecoveryGenerated, true, userID, nil, nil)
	return rawCodes, nil
}

// Disable2FA turns the second factor off after re-proving the password.
// The shared secret, pending state, and unused recovery codes are all
// discarded.
func (e *Engine) Disable2FA(ctx context.Context, userID, pass string) error {
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		ok, verifyErr := e.verifier.Verify(pass, cred.PasswordHash)
		if verifyErr != nil || !ok {
			return ErrInvalidCredentials
		}
		if !cred.TwoFactorEnabled && !cred.twoFactorPending() {
			return ErrTwoFactorNotEnabled
		}

		cred.TwoFactorMethod = MethodNone
		cred.TwoFactorSecret = nil
		cred.TwoFactorEnabled = false
		cred.TwoFactorEnabledAt = time.Time{}
		cred.RecoveryCodeHashes = nil
		if cred.OTPPurpose == PurposeTwoFactorLogin {
			cred.OTPHash = nil
			cred.OTPExpiresAt = time.Time{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, nil, nil)
	return nil
}

// VerifyLogin2FA completes a login that [Engine.Login] deferred to the
// second factor. The code may be a TOTP or dispatched OTP depending on
// the enabled method; a recovery code is accepted as fallback and
// consumed on use. rememberDevice selects the long refresh TTL.
func (e *Engine) VerifyLogin2FA(ctx context.Context, email, code string, rememberDevice bool) (*LoginResult, error) {
	cred, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditEventTwoFactorLoginFail, false, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	userID := cred.ID

	var (
		pair         TokenPair
		usedRecovery bool
	)
	err = e.withUser(ctx, userID, func(locked *UserCredential) error {
		if !locked.TwoFactorEnabled {
			return ErrTwoFactorNotEnabled
		}

		primaryErr := e.checkSecondFactor(locked, code)
		if primaryErr != nil {
			if !consumeRecoveryCode(locked, code) {
				return primaryErr
			}
			usedRecovery = true
		}

		var issueErr error
		pair, issueErr = e.issueTokenPair(locked, rememberDevice)
		return issueErr
	})
	if err != nil {
		e.metricInc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditEventTwoFactorLoginFail, false, userID, err, nil)
		return nil, err
	}

	e.metricInc(MetricTwoFactorLoginSuccess)
	if usedRecovery {
		e.metricInc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, auditEventRecoveryConsumed, true, userID, nil, nil)
	}
	e.emitAudit(ctx, auditEventTwoFactorLoginOK, true, userID, nil, map[string]string{"recovery": boolString(usedRecovery)})
	return &LoginResult{TokenPair: pair}, nil
}

// GenerateRecoveryCodes replaces the recovery set wholesale: every
// previously unused code stops working the moment the new set exists.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	var rawCodes []string
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if !cred.TwoFactorEnabled {
			return ErrTwoFactorNotEnabled
		}
		codes, hashes, genErr := e.newRecoverySet()
		if genErr != nil {
			return genErr
		}
		cred.RecoveryCodeHashes = hashes
		rawCodes = codes
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventRecoveryGenerated, true, userID, nil, nil)
	return rawCodes, nil
}

// ValidateRecoveryCode consumes a single recovery code outside the login
// flow, for step-up checks. Each code works exactly once.
func (e *Engine) ValidateRecoveryCode(ctx context.Context, userID, code string) error {
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if !cred.TwoFactorEnabled {
			return ErrTwoFactorNotEnabled
		}
		if !consumeRecoveryCode(cred, code) {
			return ErrCodeInvalid
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditEventRecoveryConsumed, true, userID, nil, nil)
	return nil
}

// RecoveryCodesRemaining reports how many unused recovery codes the user
// holds.
func (e *Engine) RecoveryCodesRemaining(ctx context.Context, userID string) (int, error) {
	cred, err := e.store.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !cred.TwoFactorEnabled {
		return 0, ErrTwoFactorNotEnabled
	}
	return len(cred.RecoveryCodeHashes), nil
}

// checkSecondFactor validates a code against the user's configured
// method: RFC 6238 for the authenticator, the outstanding login OTP
// otherwise. Caller holds the user lock.
func (e *Engine) checkSecondFactor(cred *UserCredential, code string) error {
	switch cred.TwoFactorMethod {
	case MethodAuthenticator:
		ok, err := e.totp.VerifyCode(cred.TwoFactorSecret, code, e.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrCodeInvalid
		}
		return nil
	case MethodEmail, MethodSMS:
		return e.consumeOTP(cred, PurposeTwoFactorLogin, code)
	default:
		return ErrTwoFactorMethodInvalid
	}
}

// newRecoverySet draws a fresh batch of recovery codes, returning the
// formatted raw codes for one-time display and their digests for storage.
func (e *Engine) newRecoverySet() ([]string, [][32]byte, error) {
	n := e.config.TwoFactor.RecoveryCodeCount
	codes := make([]string, 0, n)
	hashes := make([][32]byte, 0, n)
	for i := 0; i < n; i++ {
		code, err := internal.NewRecoveryCode()
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, internal.HashToken32(internal.CanonicalizeRecoveryCode(code)))
	}
	return codes, hashes, nil
}

// consumeRecoveryCode removes the matching digest from the set. Returns
// false when the code matches nothing; matching is constant-time per
// entry.
func consumeRecoveryCode(cred *UserCredential, code string) bool {
	canonical := internal.CanonicalizeRecoveryCode(code)
	if len(canonical) != internal.RecoveryCodeLength {
		return false
	}
	digest := internal.HashToken32(canonical)

	for i := range cred.RecoveryCodeHashes {
		if subtle.ConstantTimeCompare(cred.RecoveryCodeHashes[i][:], digest[:]) == 1 {
			cred.RecoveryCodeHashes = append(cred.RecoveryCodeHashes[:i], cred.RecoveryCodeHashes[i+1:]...)
			return true
		}
	}
	return false
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
