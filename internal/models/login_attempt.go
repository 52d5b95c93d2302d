package models

import (
	"time"

	"github.com/google/uuid"
)

// Failure reasons recorded on login attempts
const (
	FailureReasonInvalidCredentials = "invalid_credentials"
	FailureReasonAccountDisabled    = "account_disabled"
	FailureReasonLocked             = "account_locked"
	FailureReasonIPBlacklisted      = "ip_blacklisted"
	FailureReasonRateLimited        = "too_many_attempts"
)

// LoginAttempt is one authentication try. Rows are append-only.
type LoginAttempt struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UserID            *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Email             *string    `db:"email" json:"email,omitempty"`
	IPAddress         string     `db:"ip_address" json:"ip_address"`
	UserAgent         string     `db:"user_agent" json:"user_agent"`
	Success           bool       `db:"success" json:"success"`
	FailureReason     *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	DeviceFingerprint *string    `db:"device_fingerprint" json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// AttemptFilter selects failed attempts for counting. Every non-empty field is
// ANDed into the same query.
type AttemptFilter struct {
	Email  string
	UserID *uuid.UUID
	IP     string
}

// IsEmpty reports whether the filter has no dimension set.
func (f AttemptFilter) IsEmpty() bool {
	return f.Email == "" && f.UserID == nil && f.IP == ""
}
