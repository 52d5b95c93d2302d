package services

import (
	"fmt"
	"time"

	"github.com/BradenHooton/donorguard/internal/models"
)

// PendingAlert is an alert decided by the defense pipeline but not yet persisted.
type PendingAlert struct {
	Type     models.AlertType
	Severity models.Severity
	Title    string
	Message  string
	Details  models.AlertDetails
}

// FailedAttemptsSeverity grades multiple_failed_attempts alerts.
func FailedAttemptsSeverity(count int) models.Severity {
	switch {
	case count >= 15:
		return models.SeverityCritical
	case count >= 10:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// RiskScoreSeverity grades suspicious_activity alerts.
func RiskScoreSeverity(score int) models.Severity {
	switch {
	case score >= 80:
		return models.SeverityCritical
	case score >= 60:
		return models.SeverityHigh
	case score >= 40:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// LockoutSeverity grades account_locked alerts by lockout level.
func LockoutSeverity(level int) models.Severity {
	if level >= 3 {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

// NewAccountLockedAlert reports a freshly created lockout.
func NewAccountLockedAlert(lockout *models.AccountLockout, duration time.Duration, now time.Time) PendingAlert {
	details := models.AlertDetails{
		IP:              lockout.IPAddress,
		AttemptCount:    lockout.Attempts,
		LockoutDuration: duration.String(),
		LockoutLevel:    lockout.Level,
		ExpiresAt:       &lockout.LockedUntil,
		Timestamp:       now,
	}
	if lockout.Email != nil {
		details.Email = *lockout.Email
	}

	return PendingAlert{
		Type:     models.AlertTypeAccountLocked,
		Severity: LockoutSeverity(lockout.Level),
		Title:    fmt.Sprintf("Account locked (level %d)", lockout.Level),
		Message: fmt.Sprintf("%s %q locked for %s after %d failed login attempts",
			lockout.Scope, lockout.Key, duration, lockout.Attempts),
		Details: details,
	}
}

// NewIPBlacklistedAlert reports an automatic or manual blacklist entry. The
// severity is taken from the entry.
func NewIPBlacklistedAlert(entry *models.IPBlacklistEntry, attempts int, now time.Time) PendingAlert {
	expiry := "permanently"
	if entry.ExpiresAt != nil {
		expiry = "until " + entry.ExpiresAt.Format(time.RFC3339)
	}

	return PendingAlert{
		Type:     models.AlertTypeIPBlacklisted,
		Severity: entry.Severity,
		Title:    "IP address blacklisted",
		Message:  fmt.Sprintf("IP %s blacklisted %s (%s)", entry.IPAddress, expiry, entry.Reason),
		Details: models.AlertDetails{
			IP:           entry.IPAddress,
			AttemptCount: attempts,
			ExpiresAt:    entry.ExpiresAt,
			Timestamp:    now,
		},
	}
}

// NewMultipleFailedAttemptsAlert reports a burst of failures from one source.
func NewMultipleFailedAttemptsAlert(ip, email string, attempts int, now time.Time) PendingAlert {
	return PendingAlert{
		Type:     models.AlertTypeMultipleFailedAttempts,
		Severity: FailedAttemptsSeverity(attempts),
		Title:    "Multiple failed login attempts",
		Message:  fmt.Sprintf("%d failed login attempts from %s in the lookback window", attempts, ip),
		Details: models.AlertDetails{
			IP:           ip,
			Email:        email,
			AttemptCount: attempts,
			Timestamp:    now,
		},
	}
}

// NewSuspiciousActivityAlert reports a risk-scored event.
func NewSuspiciousActivityAlert(ip, email string, riskScore int, reason string, now time.Time) PendingAlert {
	return PendingAlert{
		Type:     models.AlertTypeSuspiciousActivity,
		Severity: RiskScoreSeverity(riskScore),
		Title:    "Suspicious login activity",
		Message:  fmt.Sprintf("%s (risk score %d)", reason, riskScore),
		Details: models.AlertDetails{
			IP:        ip,
			Email:     email,
			RiskScore: riskScore,
			Timestamp: now,
		},
	}
}

// NewRateLimitExceededAlert reports a request burst rejected at the edge.
func NewRateLimitExceededAlert(ip, route string, now time.Time) PendingAlert {
	return PendingAlert{
		Type:     models.AlertTypeRateLimitExceeded,
		Severity: models.SeverityMedium,
		Title:    "Rate limit exceeded",
		Message:  fmt.Sprintf("IP %s exceeded the request rate limit on %s", ip, route),
		Details: models.AlertDetails{
			IP:        ip,
			Timestamp: now,
		},
	}
}

func (p PendingAlert) toModel(now time.Time) *models.AdminAlert {
	details := p.Details
	if details.Timestamp.IsZero() {
		details.Timestamp = now
	}
	return &models.AdminAlert{
		Type:      p.Type,
		Severity:  p.Severity,
		Title:     p.Title,
		Message:   p.Message,
		Details:   details,
		CreatedAt: now,
	}
}
