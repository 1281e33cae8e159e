package authcore

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/internal"
	"github.com/authcore-io/authcore/jwt"
	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/revocation"
)

// Engine is the credential and session lifecycle core: token issuance and
// rotation, out-of-band revocation, the 2FA state machine, one-time
// codes, and recovery codes. Construct it once with [New]; all methods
// are safe for concurrent use.
type Engine struct {
	config      Config
	store       CredentialStore
	verifier    CredentialVerifier
	email       EmailSender
	clock       Clock
	revocations revocation.Store
	jwtManager  *jwt.Manager
	totp        *totpManager
	locks       *internal.KeyedMutex
	audit       *auditDispatcher
	metrics     *Metrics

	ownedMemoryStore *revocation.MemoryStore
}

// Dependencies carries the engine's collaborators. Store is required.
// Verifier defaults to argon2id, Revocations to an in-memory registry,
// Clock to the system clock; a nil Email disables outbound dispatch.
type Dependencies struct {
	Store       CredentialStore
	Verifier    CredentialVerifier
	Email       EmailSender
	Revocations revocation.Store
	Clock       Clock
	AuditSink   AuditSink
}

// New validates cfg and wires the engine. Configuration problems —
// including a missing signing key — fail here, never per request.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, errors.New("credential store is required")
	}

	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Verifier == nil {
		verifier, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		deps.Verifier = verifier
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		SigningKey:    cfg.JWT.SigningKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		if errors.Is(err, jwt.ErrKeyMissing) {
			return nil, ErrSigningKeyMissing
		}
		return nil, err
	}

	e := &Engine{
		config:      cfg,
		store:       deps.Store,
		verifier:    deps.Verifier,
		email:       deps.Email,
		clock:       deps.Clock,
		revocations: deps.Revocations,
		jwtManager:  jwtManager,
		totp:        newTOTPManager(cfg.TwoFactor),
		locks:       internal.NewKeyedMutex(),
		metrics:     NewMetrics(cfg.Metrics),
	}
	if e.revocations == nil {
		mem := revocation.NewMemoryStore(0)
		e.revocations = mem
		e.ownedMemoryStore = mem
	}
	e.audit = newAuditDispatcher(cfg.Audit, deps.AuditSink, e.clock)

	return e, nil
}

// Close drains the audit pipeline and stops any engine-owned background
// work.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownedMemoryStore != nil {
		e.ownedMemoryStore.Close()
	}
}

// AuditDropped reports how many audit events were lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil {
		e.metrics.Inc(id)
	}
}

func (e *Engine) emitAudit(ctx context.Context, name string, success bool, userID string, opErr error, detail map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if detail == nil {
			detail = map[string]string{}
		}
		detail["client_ip"] = ip
	}
	e.audit.emit(name, success, userID, opErr, detail)
}

// withUser serializes a read-modify-write cycle on one credential
// aggregate. fn runs under the user's lock; the aggregate is persisted
// only when fn succeeds.
func (e *Engine) withUser(ctx context.Context, userID string, fn func(cred *UserCredential) error) error {
	unlock := e.locks.Lock(userID)
	defer unlock()

	cred, err := e.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(cred); err != nil {
		return err
	}
	return e.store.Update(ctx, cred)
}

// dispatchEmail applies the configured delivery policy. Default is
// asynchronous fire-and-forget: the triggering state change has already
// committed, delivery failure is audited and counted. FailClosed makes
// delivery synchronous and surfaces ErrEmailDispatchFailed.
func (e *Engine) dispatchEmail(ctx context.Context, userID, to, subject, body string) error {
	if e.email == nil {
		return nil
	}

	if e.config.Email.FailClosed {
		if err := e.email.Send(to, subject, body); err != nil {
			e.metricInc(MetricEmailDispatchFailure)
			e.emitAudit(ctx, auditEventEmailDispatchFail, false, userID, err, map[string]string{"subject": subject})
			return ErrEmailDispatchFailed
		}
		return nil
	}

	go func() {
		if err := e.email.Send(to, subject, body); err != nil {
			e.metricInc(MetricEmailDispatchFailure)
			e.emitAudit(context.Background(), auditEventEmailDispatchFail, false, userID, err, map[string]string{"subject": subject})
			log.Print("authcore: email dispatch failed")
		}
	}()
	return nil
}

// issueTokenPair mints an access token and rotates in a fresh refresh
// token on the aggregate. Callers persist cred afterwards; the raw
// refresh token leaves through the return value only.
func (e *Engine) issueTokenPair(cred *UserCredential, remember bool) (TokenPair, error) {
	access, err := e.jwtManager.CreateAccess(cred.ID, cred.Role, cred.DisplayName, cred.Email, e.clock.Now())
	if err != nil {
		return TokenPair{}, err
	}

	secret, err := internal.NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	raw := encodeRefreshToken(cred.ID, secret)

	ttl := e.config.Refresh.TTL
	if remember {
		ttl = e.config.Refresh.RememberTTL
	}

	cred.RefreshHash = internal.HashToken(raw)
	cred.RefreshExpiresAt = e.clock.Now().Add(ttl)

	return TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// IssueTokens mints a token pair for the user outside the login flow,
// overwriting any outstanding refresh token.
func (e *Engine) IssueTokens(ctx context.Context, userID string, remember bool) (TokenPair, error) {
	var pair TokenPair
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		var issueErr error
		pair, issueErr = e.issueTokenPair(cred, remember)
		return issueErr
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Register creates a credential, hashes the password, and issues an
// email-verification code. Duplicate addresses fail with ErrEmailTaken.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if req.Email == "" || req.Password == "" {
		return "", ErrInvalidCredentials
	}

	hash, err := e.verifier.Hash(req.Password)
	if err != nil {
		return "", err
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}

	now := e.clock.Now()
	cred := &UserCredential{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	code, err := e.issueOTP(cred, PurposeEmailVerify)
	if err != nil {
		return "", err
	}

	if err := e.store.Create(ctx, cred); err != nil {
		return "", err
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventRegister, true, cred.ID, nil, nil)
	if err := e.dispatchEmail(ctx, cred.ID, cred.Email, "Verify your email",
		"Your verification code is "+code+". It expires in "+e.config.OTP.TTL.String()+"."); err != nil {
		return cred.ID, err
	}

	return cred.ID, nil
}

// Login checks the password and either issues a token pair or defers to
// the second factor. For email/SMS 2FA a login code is generated and
// dispatched before returning.
func (e *Engine) Login(ctx context.Context, email, pass string, remember bool) (*LoginResult, error) {
	cred, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		// Unknown address and wrong password are indistinguishable to the
		// caller.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{"reason": "user_not_found"})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.verifier.Verify(pass, cred.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, cred.ID, ErrInvalidCredentials, map[string]string{"reason": "password_mismatch"})
		return nil, ErrInvalidCredentials
	}

	if e.config.Account.RequireVerifiedEmail && !cred.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, cred.ID, ErrEmailUnverified, nil)
		return nil, ErrEmailUnverified
	}

	if cred.TwoFactorEnabled {
		return e.challengeTwoFactor(ctx, cred.ID)
	}

	var pair TokenPair
	err = e.withUser(ctx, cred.ID, func(locked *UserCredential) error {
		var issueErr error
		pair, issueErr = e.issueTokenPair(locked, remember)
		return issueErr
	})
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, cred.ID, err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, cred.ID, nil, nil)
	return &LoginResult{TokenPair: pair}, nil
}

// challengeTwoFactor starts the second step of a 2FA login. Email and SMS
// methods get a fresh login code; the authenticator method needs nothing
// issued.
func (e *Engine) challengeTwoFactor(ctx context.Context, userID string) (*LoginResult, error) {
	var (
		method TwoFactorMethod
		code   string
		to     string
	)
	err := e.withUser(ctx, userID, func(cred *UserCredential) error {
		method = cred.TwoFactorMethod
		if method != MethodEmail && method != MethodSMS {
			return nil
		}

		otp, otpErr := e.issueOTP(cred, PurposeTwoFactorLogin)
		if otpErr != nil {
			return otpErr
		}
		code = otp
		to = cred.Email
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorChallenged)
	e.emitAudit(ctx, auditEventLoginChallenged, true, userID, nil, map[string]string{"method": method.String()})

	if code != "" {
		e.metricInc(MetricOTPIssued)
		if err := e.dispatchEmail(ctx, userID, to, "Your login code",
			"Your two-factor login code is "+code+"."); err != nil {
			return nil, err
		}
	}

	return &LoginResult{TwoFactorRequired: true, TwoFactorMethod: method}, nil
}

// VerifyAccess validates an access token for request handling: signature,
// lifetime, then the revocation registry. The registry lookup is the only
// I/O on this path.
func (e *Engine) VerifyAccess(ctx context.Context, rawToken string) (*jwt.AccessClaims, error) {
	claims, err := e.jwtManager.ParseAccess(rawToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	revoked, err := e.revocations.IsBlacklisted(ctx, tokenDigest(rawToken))
	if err != nil {
		// Fail closed: an unreachable registry must not resurrect revoked
		// tokens.
		return nil, errors.Join(ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Logout blacklists the presented access token for the remainder of its
// lifetime and clears the stored refresh token.
func (e *Engine) Logout(ctx context.Context, rawAccessToken string) error {
	claims, err := e.jwtManager.ParseAccess(rawAccessToken)
	if err != nil {
		return ErrTokenInvalid
	}

	if err := e.RevokeAccessToken(ctx, rawAccessToken); err != nil {
		return err
	}

	err = e.withUser(ctx, claims.Subject, func(cred *UserCredential) error {
		cred.RefreshHash = nil
		cred.RefreshExpiresAt = time.Time{}
		return nil
	})
	e.emitAudit(ctx, auditEventLogout, err == nil, claims.Subject, err, nil)
	return err
}

// ChangePassword re-verifies the current password, stores the new hash,
// and invalidates both halves of the session: the refresh token is
// cleared and the presented access token blacklisted.
func (e *Engine) ChangePassword(ctx context.Context, rawAccessToken, oldPassword, newPassword string) error {
	claims, err := e.jwtManager.ParseAccess(rawAccessToken)
	if err != nil {
		return ErrTokenInvalid
	}
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	err = e.withUser(ctx, claims.Subject, func(cred *UserCredential) error {
		ok, verifyErr := e.verifier.Verify(oldPassword, cred.PasswordHash)
		if verifyErr != nil || !ok {
			return ErrInvalidCredentials
		}

		newHash, hashErr := e.verifier.Hash(newPassword)
		if hashErr != nil {
			return hashErr
		}

		cred.PasswordHash = newHash
		cred.RefreshHash = nil
		cred.RefreshExpiresAt = time.Time{}
		return nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChanged, false, claims.Subject, err, nil)
		return err
	}

	if err := e.RevokeAccessToken(ctx, rawAccessToken); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventPasswordChanged, true, claims.Subject, nil, nil)
	return nil
}

// tokenDigest is the revocation-registry key: hex SHA-256 of the raw
// token.
func tokenDigest(rawToken string) string {
	return hex.EncodeToString(internal.HashToken(rawToken))
}
