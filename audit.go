package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

const (
	auditEventRegister           = "account.registered"
	auditEventLoginSuccess       = "login.success"
	auditEventLoginFailure       = "login.failure"
	auditEventLoginChallenged    = "login.twofactor_challenged"
	auditEventLogout             = "session.logout"
	auditEventRefreshRotated     = "refresh.rotated"
	auditEventRefreshRejected    = "refresh.rejected"
	auditEventTokenRevoked       = "token.revoked"
	auditEventOTPIssued          = "otp.issued"
	auditEventOTPVerified        = "otp.verified"
	auditEventOTPRejected        = "otp.rejected"
	auditEventEmailDispatchFail  = "email.dispatch_failure"
	auditEventEmailChangeStaged  = "email.change_staged"
	auditEventEmailChanged       = "email.changed"
	auditEventPasswordChanged    = "password.changed"
	auditEventTwoFactorSetup     = "twofactor.setup_started"
	auditEventTwoFactorEnabled   = "twofactor.enabled"
	auditEventTwoFactorDisabled  = "twofactor.disabled"
	auditEventTwoFactorLoginOK   = "twofactor.login_success"
	auditEventTwoFactorLoginFail = "twofactor.login_failure"
	auditEventRecoveryGenerated  = "twofactor.recovery_codes_generated"
	auditEventRecoveryConsumed   = "twofactor.recovery_code_consumed"
)

// AuditEvent is one structured record emitted by the engine. Detail never
// carries secrets: codes, tokens, and hashes stay out of the audit
// stream.
type AuditEvent struct {
	Time    time.Time         `json:"time"`
	Name    string            `json:"name"`
	Success bool              `json:"success"`
	UserID  string            `json:"user_id,omitempty"`
	Error   string            `json:"error,omitempty"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// AuditSink receives events from the dispatcher. Emit must not block
// indefinitely; slow sinks cause drops, not stalls.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit drops the event.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink buffers events on a channel for the caller to drain.
type ChannelSink struct {
	ch chan AuditEvent
}

// NewChannelSink creates a sink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan AuditEvent, buffer)}
}

// Emit enqueues the event, dropping it when the buffer is full.
func (s *ChannelSink) Emit(_ context.Context, event AuditEvent) {
	select {
	case s.ch <- event:
	default:
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.ch
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterSink creates a sink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

// Emit encodes the event. Encoding failures are silently dropped; the
// audit stream is best-effort.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	_ = enc.Encode(event)
}
