package security

import "errors"

var (
	// ErrTokenInvalid covers malformed, unsigned, or tampered tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired distinguishes a stale session from a forged token.
	ErrTokenExpired = errors.New("token expired")
)
