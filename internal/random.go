package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
)

const (
	refreshSecretSize = 32 // 256 bits of entropy per refresh token

	// RecoveryCodeAlphabet is the character set recovery codes draw from.
	RecoveryCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// RecoveryCodeLength is the number of alphabet characters per code,
	// rendered as XXXXX-XXXXX.
	RecoveryCodeLength = 10
)

// NewRefreshToken returns a fresh opaque refresh token: 32 random bytes,
// base64url without padding.
func NewRefreshToken() (string, error) {
	var raw [refreshSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the SHA-256 digest of a raw token or code. Stores only
// ever hold this digest, never the raw secret.
func HashToken(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// HashToken32 is HashToken with a fixed-size result, used for set
// membership on recovery codes.
func HashToken32(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}

// NewOTP returns a zero-padded numeric code of the given length. Digits
// are drawn by rejection sampling so the distribution is exactly uniform;
// a single rand.Uint32 mod 10^digits would carry a slight bias.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	for i := 0; i < digits; i++ {
		d, err := uniformIndex(10)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d))
	}

	return b.String(), nil
}

// NewRecoveryCode returns a single recovery code in canonical XXXXX-XXXXX
// form, drawn uniformly from [A-Z0-9].
func NewRecoveryCode() (string, error) {
	var b strings.Builder
	b.Grow(RecoveryCodeLength + 1)

	for i := 0; i < RecoveryCodeLength; i++ {
		if i == RecoveryCodeLength/2 {
			b.WriteByte('-')
		}
		idx, err := uniformIndex(len(RecoveryCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(RecoveryCodeAlphabet[idx])
	}

	return b.String(), nil
}

// CanonicalizeRecoveryCode normalizes user input before hashing: upper
// case, hyphen and whitespace stripped.
func CanonicalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}

// FormatRecoveryCode renders a canonical 10-character code as
// XXXXX-XXXXX.
func FormatRecoveryCode(canonical string) string {
	if len(canonical) != RecoveryCodeLength {
		return canonical
	}
	return canonical[:RecoveryCodeLength/2] + "-" + canonical[RecoveryCodeLength/2:]
}

// NewTwoFactorSecret returns n random bytes for a shared 2FA secret.
func NewTwoFactorSecret(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid secret size")
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// uniformIndex draws an int in [0, n) without modulo bias by rejecting
// values above the largest multiple of n that fits in a uint32.
func uniformIndex(n int) (int, error) {
	if n <= 0 || n > 256 {
		return 0, errors.New("invalid alphabet size")
	}

	limit := uint32(0xFFFFFFFF - (0x100000000 % uint64(n)))
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v <= limit {
			return int(v % uint32(n)), nil
		}
	}
}
