// Package totp implements RFC 6238 time-based one-time passwords for the
// two-factor verifier: SHA-1, 6 digits, 30-second period.
//
// Verification is deliberately strict: a code is accepted only when its
// time-step delta against the current step is exactly zero. Malformed
// secrets or codes verify as false rather than surfacing an error.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	digits      = 6
	period      = 30 * time.Second
	secretBytes = 20
)

// GenerateSecret returns a fresh base32-encoded shared secret suitable for
// enrollment with an authenticator app.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// Verify reports whether code matches the expected value for secret at the
// current time step. Any malformed secret or code yields false.
func Verify(secret, code string) bool {
	return verifyAt(secret, code, time.Now())
}

func verifyAt(secret, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != digits || !isNumeric(trimmed) {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil || len(key) == 0 {
		return false
	}

	// Zero-delta policy: only the current counter value is computed.
	counter := now.Unix() / int64(period.Seconds())
	if counter < 0 {
		return false
	}

	expected := hotpCode(key, uint64(counter))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
}

func hotpCode(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
