package password

import (
	"strings"
	"testing"
)

func newTestArgon2(t *testing.T) *Argon2 {
	t.Helper()
	a, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return a
}

func TestHashVerifyRoundTrip(t *testing.T) {
	a := newTestArgon2(t)

	hash, err := a.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash %q not in PHC format", hash)
	}

	ok, err := a.Verify("correct-horse", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v; want true", ok, err)
	}
	ok, err = a.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("Verify wrong password = %v, %v; want false", ok, err)
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	a := newTestArgon2(t)

	h1, err := a.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, err := a.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	a := newTestArgon2(t)
	if _, err := a.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	a := newTestArgon2(t)

	cases := []string{
		"",
		"plainhash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	}
	for _, encoded := range cases {
		if _, err := a.Verify("password", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestVerifyHonorsEmbeddedParameters(t *testing.T) {
	// A hash minted with one cost profile must verify under a verifier
	// configured with another.
	heavy, err := NewArgon2(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	hash, err := heavy.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	light := newTestArgon2(t)
	ok, err := light.Verify("correct-horse", hash)
	if err != nil || !ok {
		t.Fatalf("cross-config Verify = %v, %v; want true", ok, err)
	}
}

func TestNewArgon2EnforcesMinimums(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range bad {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected rejection", i)
		}
	}
}
