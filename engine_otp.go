package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/authcore-io/authcore/internal"
)

// issueOTP generates a fresh code and overwrites any outstanding
// challenge on the aggregate. The raw code is returned for dispatch and
// never persisted.
func (e *Engine) issueOTP(cred *UserCredential, purpose OTPPurpose) (string, error) {
	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return "", err
	}
	cred.OTPHash = internal.HashToken(code)
	cred.OTPPurpose = purpose
	cred.OTPExpiresAt = e.clock.Now().Add(e.config.OTP.TTL)
	return code, nil
}

// consumeOTP validates a submitted code against the outstanding
// challenge and clears it on success. The expiry boundary is exclusive:
// a code checked exactly at its expiry instant is already expired.
func (e *Engine) consumeOTP(cred *UserCredential, purpose OTPPurpose, code string) error {
	if len(cred.OTPHash) == 0 || cred.OTPPurpose != purpose {
		return ErrNoPendingCode
	}
	if !e.clock.Now().Before(cred.OTPExpiresAt) {
		return ErrCodeExpired
	}
	submitted := internal.HashToken(strings.TrimSpace(code))
	if subtle.ConstantTimeCompare(submitted, cred.OTPHash) != 1 {
		return ErrCodeInvalid
	}

	cred.OTPHash = nil
	cred.OTPExpiresAt = time.Time{}
	return nil
}

func otpSubject(purpose OTPPurpose) string {
	switch purpose {
	case PurposePasswordReset:
		return "Reset your password"
	case PurposePhoneVerify:
		return "Verify your phone number"
	case PurposeTwoFactorLogin:
		return "Your login code"
	default:
		return "Verify your email"
	}
}

// GenerateOTP issues (or reissues) a challenge for the purpose and
// dispatches it. Reissuing invalidates the previous code: at most one
// challenge per user is live.
func (e *Engine) GenerateOTP(ctx context.Context, userID string, purpose OTPPurpose) error {
	var (
		code string
		to   string
	)
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		otp, issueErr := e.issueOTP(cred, purpose)
		if issueErr != nil {
			return issueErr
		}
		code = otp
		to = cred.Email
		if purpose == PurposeEmailVerify && cred.PendingEmail != "" {
			to = cred.PendingEmail
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, userID, nil, map[string]string{"purpose": purpose.String()})
	return e.dispatchEmail(ctx, userID, to, otpSubject(purpose),
		"Your verification code is "+code+". It expires in "+e.config.OTP.TTL.String()+".")
}

// VerifyOTP checks a submitted code and applies the purpose's side
// effect: email verification confirms the address (completing a staged
// change when one is pending), phone verification flips the phone flag.
// A successful check consumes the code.
func (e *Engine) VerifyOTP(ctx context.Context, userID string, purpose OTPPurpose, code string) error {
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if consumeErr := e.consumeOTP(cred, purpose, code); consumeErr != nil {
			return consumeErr
		}

		switch purpose {
		case PurposeEmailVerify:
			if cred.PendingEmail != "" {
				cred.Email = cred.PendingEmail
				cred.PendingEmail = ""
			}
			cred.EmailVerified = true
		case PurposePhoneVerify:
			cred.PhoneVerified = true
		}
		return nil
	})
	if err != nil {
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPRejected, false, userID, err, map[string]string{"purpose": purpose.String()})
		return err
	}

	e.metricInc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventOTPVerified, true, userID, nil, map[string]string{"purpose": purpose.String()})
	return nil
}

// RequestEmailChange stages a new address and dispatches a verification
// code to it. The confirmed address stays live until the code is
// verified, so a typo in the new address never locks the account.
func (e *Engine) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return ErrInvalidCredentials
	}
	if existing, err := e.store.GetByEmail(ctx, newEmail); err == nil && existing.ID != userID {
		return ErrEmailTaken
	}

	var code string
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		cred.PendingEmail = newEmail
		otp, issueErr := e.issueOTP(cred, PurposeEmailVerify)
		if issueErr != nil {
			return issueErr
		}
		code = otp
		return nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventEmailChangeStaged, true, userID, nil, nil)
	return e.dispatchEmail(ctx, userID, newEmail, "Confirm your new email address",
		"Your confirmation code is "+code+". It expires in "+e.config.OTP.TTL.String()+".")
}

// ConfirmEmailChange completes a staged address change. Without a staged
// address it fails with ErrPendingEmailMissing.
func (e *Engine) ConfirmEmailChange(ctx context.Context, userID, code string) error {
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		if cred.PendingEmail == "" {
			return ErrPendingEmailMissing
		}
		if consumeErr := e.consumeOTP(cred, PurposeEmailVerify, code); consumeErr != nil {
			return consumeErr
		}
		cred.Email = cred.PendingEmail
		cred.PendingEmail = ""
		cred.EmailVerified = true
		return nil
	})
	if err != nil {
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPRejected, false, userID, err, map[string]string{"purpose": PurposeEmailVerify.String()})
		return err
	}

	e.metricInc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventEmailChanged, true, userID, nil, nil)
	return nil
}

// RequestPasswordReset issues a reset code for the account holding the
// address.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	cred, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return e.GenerateOTP(ctx, cred.ID, PurposePasswordReset)
}

// ResetPassword consumes a reset code and installs the new password. The
// outstanding refresh token is cleared so stolen sessions do not survive
// the reset.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}
	cred, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	userID := cred.ID
	err = e.withUser(ctx, userID, func(locked *UserCredential) error {
		if consumeErr := e.consumeOTP(locked, PurposePasswordReset, code); consumeErr != nil {
			return consumeErr
		}

		hash, hashErr := e.verifier.Hash(newPassword)
		if hashErr != nil {
			return hashErr
		}
		locked.PasswordHash = hash
		locked.RefreshHash = nil
		locked.RefreshExpiresAt = time.Time{}
		return nil
	})
	if err != nil {
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPRejected, false, userID, err, map[string]string{"purpose": PurposePasswordReset.String()})
		return err
	}

	e.metricInc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, nil, map[string]string{"via": "reset_code"})
	return nil
}

// ResendVerificationEmail reissues the registration verification code.
// Already-verified accounts fail cleanly instead of dispatching a
// pointless code.
func (e *Engine) ResendVerificationEmail(ctx context.Context, userID string) error {
	cred, err := e.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if cred.EmailVerified && cred.PendingEmail == "" {
		return errors.New("email already verified")
	}
	return e.GenerateOTP(ctx, userID, PurposeEmailVerify)
}
