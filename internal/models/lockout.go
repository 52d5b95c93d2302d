package models

import (
	"time"

	"github.com/google/uuid"
)

// LockoutScope is the identity dimension a lockout applies to.
type LockoutScope string

const (
	LockoutScopeUser  LockoutScope = "user"
	LockoutScopeEmail LockoutScope = "email"
	LockoutScopeIP    LockoutScope = "ip"
)

// Valid reports whether s is a known scope.
func (s LockoutScope) Valid() bool {
	switch s {
	case LockoutScopeUser, LockoutScopeEmail, LockoutScopeIP:
		return true
	}
	return false
}

// Lockout levels escalate monotonically from 1 to MaxLockoutLevel.
const (
	MinLockoutLevel = 1
	MaxLockoutLevel = 4
)

// AccountLockout is an active or expired lockout window for one (scope, key).
type AccountLockout struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	UserID      *uuid.UUID   `db:"user_id" json:"user_id,omitempty"`
	Email       *string      `db:"email" json:"email,omitempty"`
	IPAddress   string       `db:"ip_address" json:"ip_address"`
	Scope       LockoutScope `db:"scope" json:"scope"`
	Key         string       `db:"lockout_key" json:"key"`
	Attempts    int          `db:"attempts" json:"attempts"`
	Level       int          `db:"level" json:"level"`
	LockedUntil time.Time    `db:"locked_until" json:"locked_until"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	UnlockedBy  *string      `db:"unlocked_by" json:"unlocked_by,omitempty"`
	UnlockedAt  *time.Time   `db:"unlocked_at" json:"unlocked_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// IsActiveAt reports whether the lockout still blocks logins at now.
// Expiry is evaluated at read time; nothing sweeps expired rows.
func (l *AccountLockout) IsActiveAt(now time.Time) bool {
	return l.IsActive && l.LockedUntil.After(now)
}

// LockoutKey identifies one lockout slot.
type LockoutKey struct {
	Scope LockoutScope
	Key   string
}
