package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func drainUntil(t *testing.T, sink *ChannelSink, name string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Name == name {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q event observed", name)
		}
	}
}

func TestAuditEmitsLoginEvents(t *testing.T) {
	env := newTestEngine(t)
	userID := env.registerVerified(t, "alice@example.com", "correct-horse")
	env.login(t, "alice@example.com", "correct-horse")

	event := drainUntil(t, env.sink, auditEventLoginSuccess)
	if !event.Success || event.UserID != userID {
		t.Fatalf("unexpected event %+v", event)
	}

	_, _ = env.engine.Login(context.Background(), "alice@example.com", "wrong", false)
	event = drainUntil(t, env.sink, auditEventLoginFailure)
	if event.Success || event.Error == "" {
		t.Fatalf("unexpected failure event %+v", event)
	}
}

func TestAuditCarriesClientIP(t *testing.T) {
	env := newTestEngine(t)
	env.registerVerified(t, "alice@example.com", "correct-horse")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := env.engine.Login(ctx, "alice@example.com", "correct-horse", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	event := drainUntil(t, env.sink, auditEventLoginSuccess)
	if event.Detail["client_ip"] != "203.0.113.7" {
		t.Fatalf("client_ip detail = %q", event.Detail["client_ip"])
	}
}

func TestAuditNeverLeaksSecrets(t *testing.T) {
	env := newTestEngine(t)
	userID := env.register(t, "alice@example.com", "correct-horse")
	code := env.mail.lastCode(t)
	if err := env.engine.VerifyOTP(context.Background(), userID, PurposeEmailVerify, code); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	pair := env.login(t, "alice@example.com", "correct-horse")

	env.engine.Close()
	for {
		select {
		case event := <-env.sink.Events():
			// Timestamps can coincidentally contain any digit run; only the
			// payload fields matter.
			event.Time = time.Time{}
			blob, _ := json.Marshal(event)
			for _, secret := range []string{"correct-horse", code, pair.RefreshToken, pair.AccessToken} {
				if strings.Contains(string(blob), secret) {
					t.Fatalf("audit event leaks secret: %s", blob)
				}
			}
		default:
			return
		}
	}
}

func TestAuditDisabled(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config, _ *Dependencies) {
		cfg.Audit.Enabled = false
	})
	env.registerVerified(t, "alice@example.com", "correct-horse")
	env.login(t, "alice@example.com", "correct-horse")

	select {
	case event := <-env.sink.Events():
		t.Fatalf("unexpected event with audit disabled: %+v", event)
	default:
	}
	if got := env.engine.AuditDropped(); got != 0 {
		t.Fatalf("AuditDropped = %d, want 0", got)
	}
}

func TestAuditDropsOnBackpressure(t *testing.T) {
	slow := blockingSink{release: make(chan struct{})}
	clock := newFakeClock()

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, slow, clock)
	defer func() {
		close(slow.release)
		d.Close()
	}()

	// One event occupies the worker, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.emit("event", true, "", nil, nil)
	}
	if got := d.Dropped(); got == 0 {
		t.Fatal("expected dropped events under backpressure")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{Name: "a", Success: true})
	sink.Emit(context.Background(), AuditEvent{Name: "b"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil || event.Name != "a" {
		t.Fatalf("bad first line %q: %v", lines[0], err)
	}
}
