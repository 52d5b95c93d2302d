package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType classifies admin alerts.
type AlertType string

const (
	AlertTypeIPBlacklisted          AlertType = "ip_blacklisted"
	AlertTypeMultipleFailedAttempts AlertType = "multiple_failed_attempts"
	AlertTypeSuspiciousActivity     AlertType = "suspicious_activity"
	AlertTypeRateLimitExceeded      AlertType = "rate_limit_exceeded"
	AlertTypeAccountLocked          AlertType = "account_locked"
)

// AlertDetails is the structured bag attached to every alert.
type AlertDetails struct {
	IP              string     `json:"ip,omitempty"`
	Email           string     `json:"email,omitempty"`
	AttemptCount    int        `json:"attempt_count,omitempty"`
	RiskScore       int        `json:"risk_score,omitempty"`
	LockoutDuration string     `json:"lockout_duration,omitempty"`
	LockoutLevel    int        `json:"lockout_level,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Value implements driver.Valuer for JSONB storage
func (d AlertDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB retrieval
func (d *AlertDetails) Scan(value interface{}) error {
	if value == nil {
		*d = AlertDetails{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for alert details: %T", value)
	}

	return json.Unmarshal(data, d)
}

// AdminAlert is a notification record surfaced to operators.
type AdminAlert struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Type      AlertType    `db:"alert_type" json:"type"`
	Severity  Severity     `db:"severity" json:"severity"`
	Title     string       `db:"title" json:"title"`
	Message   string       `db:"message" json:"message"`
	Details   AlertDetails `db:"details" json:"details"`
	IsRead    bool         `db:"is_read" json:"is_read"`
	ReadAt    *time.Time   `db:"read_at" json:"read_at,omitempty"`
	ReadBy    *string      `db:"read_by" json:"read_by,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// AlertFilter narrows alert listings and counts. Zero values match everything.
type AlertFilter struct {
	Type       AlertType
	Severity   Severity
	UnreadOnly bool
	Since      *time.Time
}
