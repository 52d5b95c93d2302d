package models

import (
	"time"

	"github.com/google/uuid"
)

// BlacklistReason explains why an IP was blacklisted.
type BlacklistReason string

const (
	BlacklistReasonMalicious  BlacklistReason = "malicious"
	BlacklistReasonBruteForce BlacklistReason = "brute_force"
	BlacklistReasonSpam       BlacklistReason = "spam"
	BlacklistReasonGeographic BlacklistReason = "geographic"
	BlacklistReasonManual     BlacklistReason = "manual"
)

// Severity is shared by blacklist entries and admin alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// BlacklistAddedBySystem marks entries created by auto-escalation.
const BlacklistAddedBySystem = "system"

// IPBlacklistEntry is a deny-list entry. ExpiresAt nil means permanent.
type IPBlacklistEntry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	IPAddress   string          `db:"ip_address" json:"ip_address"`
	Reason      BlacklistReason `db:"reason" json:"reason"`
	Severity    Severity        `db:"severity" json:"severity"`
	Description *string         `db:"description" json:"description,omitempty"`
	ExpiresAt   *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	AddedBy     string          `db:"added_by" json:"added_by"`
	RemovedBy   *string         `db:"removed_by" json:"removed_by,omitempty"`
	RemovedAt   *time.Time      `db:"removed_at" json:"removed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// IsActiveAt reports whether the entry blocks the IP at now.
func (e *IPBlacklistEntry) IsActiveAt(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}
