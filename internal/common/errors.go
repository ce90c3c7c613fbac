// Package common defines shared constants and sentinel errors used across
// BarkBot components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal       = errors.New("internal error")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorInvalidRequest = errors.New("invalid request")

	// Verification-code lifecycle errors.
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
