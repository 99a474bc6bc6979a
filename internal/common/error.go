// Package common defines shared constants and sentinel errors used across
// the identity core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorBadRequest   = errors.New("bad request")

	// ErrorAccessForbidden marks a valid identity that failed a secondary
	// gate, e.g. a two-factor code mismatch.
	ErrorAccessForbidden = errors.New("access forbidden")

	// Uniqueness / one-time-allowance conflicts. Distinct sentinels so the
	// HTTP boundary can surface the specific reason.
	ErrorEmailTaken        = errors.New("email already taken")
	ErrorUsernameTaken     = errors.New("username already taken")
	ErrorPasswordUnchanged = errors.New("new password matches the current one")

	// Auth errors (invalid, malformed, expired, or wrong-type token).
	ErrorInvalidToken = errors.New("invalid token")

	// ErrorRateLimited indicates too many failed sign-in attempts.
	ErrorRateLimited = errors.New("rate limited")

	// ErrorDecryption indicates input that was not produced by the
	// configured cipher.
	ErrorDecryption = errors.New("decryption error")
)
