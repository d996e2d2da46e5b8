package domain

import "errors"

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidEventState = errors.New("event is not open for registration")
	ErrRoleNotFound      = errors.New("role not found on event")

	ErrAlreadyRegistered = errors.New("already registered for this role")
	ErrNotRegistered     = errors.New("not registered for this role")
	ErrNotInSourceRole   = errors.New("no registration in source role")
	ErrCapacityExceeded  = errors.New("role is at capacity")
	ErrTargetBecameFull  = errors.New("target role filled up concurrently")

	// ErrLockTimeout is retryable by the caller and must never be mapped to
	// the same outcome as a capacity or validation failure.
	ErrLockTimeout = errors.New("timed out waiting for roster lock")

	ErrUnauthorized = errors.New("operator not allowed to act on this event")

	ErrCacheMiss = errors.New("cache miss")

	// ErrInternal is the opaque fallback; it never masks a more specific
	// error when one is determinable.
	ErrInternal = errors.New("internal error")
)
