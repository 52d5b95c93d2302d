package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled       = errors.New("account is disabled")
	ErrAccountLockedBySystem = errors.New("account is temporarily locked after repeated failures")
	ErrRateLimitExceeded     = errors.New("too many failed login attempts")

	// Login defense errors
	ErrIPBlacklisted      = errors.New("ip address is blacklisted")
	ErrDefenseUnavailable = errors.New("login defense checks unavailable")
)
