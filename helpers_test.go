package authcore

import (
	"context"
	"encoding/base32"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/authcore-io/authcore/password"
)

// fakeClock is a manually advanced Clock. It starts at wall time so
// freshly minted JWTs validate against the real parser clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// captureSender records outbound mail. Set fail to simulate a delivery
// outage.
type captureSender struct {
	mu    sync.Mutex
	sends []sentMail
	fail  bool
}

func (s *captureSender) Send(to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.sends = append(s.sends, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

func (s *captureSender) last(t *testing.T) sentMail {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sends) == 0 {
		t.Fatal("no mail captured")
	}
	return s.sends[len(s.sends)-1]
}

// lastCode extracts the numeric one-time code from the most recent mail
// body.
func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	body := s.last(t).Body

	start := -1
	for i := 0; i <= len(body); i++ {
		if i < len(body) && body[i] >= '0' && body[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= 6 {
			return body[start:i]
		}
		start = -1
	}
	t.Fatalf("no code found in mail body %q", body)
	return ""
}

// memStore is the in-memory CredentialStore used throughout the tests.
type memStore struct {
	mu      sync.RWMutex
	byID    map[string]UserCredential
	byEmail map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		byID:    make(map[string]UserCredential),
		byEmail: make(map[string]string),
	}
}

func (s *memStore) Create(_ context.Context, cred *UserCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[cred.Email]; ok {
		return ErrEmailTaken
	}
	s.byID[cred.ID] = *cred
	s.byEmail[cred.Email] = cred.ID
	return nil
}

func (s *memStore) GetByID(_ context.Context, userID string) (*UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := cred
	return &out, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cred := s.byID[id]
	out := cred
	return &out, nil
}

func (s *memStore) Update(_ context.Context, cred *UserCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[cred.ID]
	if !ok {
		return ErrUserNotFound
	}
	if old.Email != cred.Email {
		delete(s.byEmail, old.Email)
		s.byEmail[cred.Email] = cred.ID
	}
	s.byID[cred.ID] = *cred
	return nil
}

// get returns a copy of the stored aggregate for assertions.
func (s *memStore) get(t *testing.T, userID string) UserCredential {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[userID]
	if !ok {
		t.Fatalf("user %s not in store", userID)
	}
	return cred
}

type testEnv struct {
	engine *Engine
	store  *memStore
	mail   *captureSender
	clock  *fakeClock
	sink   *ChannelSink
}

// newTestEngine builds an engine on the in-memory store with a manual
// clock, light argon2 parameters, and synchronous mail dispatch so
// captured codes are immediately visible.
func newTestEngine(t *testing.T, mutate ...func(cfg *Config, deps *Dependencies)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte("test-signing-key-0123456789abcdef")
	cfg.Email.FailClosed = true

	env := &testEnv{
		store: newMemStore(),
		mail:  &captureSender{},
		clock: newFakeClock(),
		sink:  NewChannelSink(128),
	}

	verifier, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("argon2 init failed: %v", err)
	}

	deps := Dependencies{
		Store:     env.store,
		Verifier:  verifier,
		Email:     env.mail,
		Clock:     env.clock,
		AuditSink: env.sink,
	}

	for _, fn := range mutate {
		fn(&cfg, &deps)
	}

	engine, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, email, pass string) string {
	t.Helper()
	userID, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return userID
}

// registerVerified registers a user and completes email verification with
// the dispatched code.
func (env *testEnv) registerVerified(t *testing.T, email, pass string) string {
	t.Helper()
	userID := env.register(t, email, pass)
	code := env.mail.lastCode(t)
	if err := env.engine.VerifyOTP(context.Background(), userID, PurposeEmailVerify, code); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	return userID
}

func (env *testEnv) login(t *testing.T, email, pass string) TokenPair {
	t.Helper()
	result, err := env.engine.Login(context.Background(), email, pass, false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.TwoFactorRequired {
		t.Fatal("unexpected two-factor challenge")
	}
	return result.TokenPair
}

// totpCodeAt computes the RFC 6238 code an authenticator app would show
// at the given instant.
func totpCodeAt(t *testing.T, secretBase32 string, cfg TwoFactorConfig, at time.Time) string {
	t.Helper()
	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secretBase32)
	if err != nil {
		t.Fatalf("decode totp secret: %v", err)
	}
	code, err := hotpCode(secret, at.Unix()/int64(cfg.Period), cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotp code: %v", err)
	}
	return code
}
