package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/donorguard/internal/metrics"
	"github.com/BradenHooton/donorguard/internal/models"
	pkglogger "github.com/BradenHooton/donorguard/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LoginAttemptRepository defines the persistence operations for login attempts
type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailed(ctx context.Context, filter models.AttemptFilter, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutRepository defines the persistence operations for account lockouts
type LockoutRepository interface {
	FindActive(ctx context.Context, keys []models.LockoutKey, now time.Time) (*models.AccountLockout, error)
	Create(ctx context.Context, lockout *models.AccountLockout) error
	Unlock(ctx context.Context, scope models.LockoutScope, key, unlockedBy string, at time.Time) error
	LastUnlockedAt(ctx context.Context, keys []models.LockoutKey) (*time.Time, error)
	ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.AccountLockout, error)
}

// BlacklistRepository defines the persistence operations for the IP blacklist
type BlacklistRepository interface {
	FindActive(ctx context.Context, ip string, now time.Time) (*models.IPBlacklistEntry, error)
	Create(ctx context.Context, entry *models.IPBlacklistEntry) error
	Remove(ctx context.Context, ip, removedBy string, at time.Time) error
	ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.IPBlacklistEntry, error)
}

// BlacklistCache holds positive blacklist lookups. Cache errors never decide a login.
type BlacklistCache interface {
	Contains(ctx context.Context, ip string) (bool, error)
	Add(ctx context.Context, ip string, ttl time.Duration) error
	Remove(ctx context.Context, ip string) error
}

// DefenseStores groups the repositories the defense pipeline reads and writes
type DefenseStores struct {
	Attempts  LoginAttemptRepository
	Lockouts  LockoutRepository
	Blacklist BlacklistRepository
}

// LoginDefenseConfig holds the thresholds of the defense pipeline
type LoginDefenseConfig struct {
	LookbackWindow       time.Duration
	MaxAttempts          int
	AdminMaxAttempts     int
	CaptchaThreshold     int
	IPBlacklistThreshold int
}

// Decision reasons
const (
	ReasonIPBlacklisted      = models.FailureReasonIPBlacklisted
	ReasonAccountLocked      = models.FailureReasonLocked
	ReasonTooManyAttempts    = models.FailureReasonRateLimited
	ReasonServiceUnavailable = "service_unavailable"
	ReasonAllowed            = "allowed"
)

type lockoutTier struct {
	attempts int
	duration time.Duration
}

// Thresholds are scanned lowest first; the highest tier met wins.
var (
	regularLockoutTiers = []lockoutTier{
		{attempts: 5, duration: 15 * time.Minute},
		{attempts: 10, duration: 30 * time.Minute},
		{attempts: 15, duration: time.Hour},
		{attempts: 20, duration: 24 * time.Hour},
	}
	adminLockoutTiers = []lockoutTier{
		{attempts: 3, duration: 30 * time.Minute},
		{attempts: 6, duration: time.Hour},
		{attempts: 9, duration: 4 * time.Hour},
		{attempts: 12, duration: 24 * time.Hour},
	}
)

// LockoutLevel returns the level and duration for a failure count.
// Counts below the first tier map to level 1.
func LockoutLevel(attempts int, admin bool) (int, time.Duration) {
	tiers := regularLockoutTiers
	if admin {
		tiers = adminLockoutTiers
	}

	level, duration := models.MinLockoutLevel, tiers[0].duration
	for i, tier := range tiers {
		if attempts >= tier.attempts {
			level, duration = i+1, tier.duration
		}
	}
	return level, duration
}

// BlacklistTier returns severity and TTL for an automatic blacklist entry.
func BlacklistTier(attempts int) (models.Severity, time.Duration) {
	switch {
	case attempts >= 20:
		return models.SeverityCritical, 7 * 24 * time.Hour
	case attempts >= 15:
		return models.SeverityHigh, 24 * time.Hour
	default:
		return models.SeverityMedium, 24 * time.Hour
	}
}

// LoginIdentity is what is known about a login before credentials are checked.
type LoginIdentity struct {
	Email   string
	UserID  *uuid.UUID
	IP      string
	IsAdmin bool
}

func (id LoginIdentity) normalized() LoginIdentity {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	id.IP = strings.TrimSpace(id.IP)
	return id
}

func (id LoginIdentity) filter() models.AttemptFilter {
	return models.AttemptFilter{Email: id.Email, UserID: id.UserID, IP: id.IP}
}

func (id LoginIdentity) hasAccount() bool {
	return id.Email != "" || id.UserID != nil
}

func (id LoginIdentity) lockoutKeys() []models.LockoutKey {
	keys := make([]models.LockoutKey, 0, 3)
	if id.Email != "" {
		keys = append(keys, models.LockoutKey{Scope: models.LockoutScopeEmail, Key: id.Email})
	}
	if id.UserID != nil {
		keys = append(keys, models.LockoutKey{Scope: models.LockoutScopeUser, Key: id.UserID.String()})
	}
	if id.IP != "" {
		keys = append(keys, models.LockoutKey{Scope: models.LockoutScopeIP, Key: id.IP})
	}
	return keys
}

// LoginDecision is the outcome of CheckLoginAllowed. Alerts must be handed to
// AlertService; they are not persisted by the defense service.
type LoginDecision struct {
	Allowed           bool           `json:"allowed"`
	Reason            string         `json:"reason,omitempty"`
	LockedUntil       *time.Time     `json:"locked_until,omitempty"`
	RetryAfterSeconds int            `json:"retry_after_seconds,omitempty"`
	LockoutLevel      int            `json:"lockout_level,omitempty"`
	CaptchaRequired   bool           `json:"captcha_required"`
	AttemptsRemaining *int           `json:"attempts_remaining,omitempty"`
	Alerts            []PendingAlert `json:"-"`

	failures int
}

// Failures is the failure count the decision was based on.
func (d *LoginDecision) Failures() int {
	return d.failures
}

// AttemptInput describes one finished login attempt
type AttemptInput struct {
	Email         string
	UserID        *uuid.UUID
	IP            string
	UserAgent     string
	Success       bool
	FailureReason string
}

// ManualBlacklistInput describes an operator-created blacklist entry. A nil
// TTL makes the entry permanent.
type ManualBlacklistInput struct {
	IP          string
	Reason      models.BlacklistReason
	Severity    models.Severity
	Description string
	TTL         *time.Duration
	AddedBy     string
}

// LoginDefenseService records login attempts and decides whether a login may proceed
type LoginDefenseService struct {
	stores  DefenseStores
	cache   BlacklistCache
	clock   Clock
	metrics *metrics.Metrics
	config  LoginDefenseConfig
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

// NewLoginDefenseService creates a new LoginDefenseService. cache and m may be nil.
func NewLoginDefenseService(
	stores DefenseStores,
	cache BlacklistCache,
	clock Clock,
	m *metrics.Metrics,
	config LoginDefenseConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *LoginDefenseService {
	return &LoginDefenseService{
		stores:  stores,
		cache:   cache,
		clock:   clock,
		metrics: m,
		config:  config,
		logger:  logger,
		audit:   audit,
	}
}

func (s *LoginDefenseService) threshold(admin bool) int {
	if admin {
		return s.config.AdminMaxAttempts
	}
	return s.config.MaxAttempts
}

// CheckLoginAllowed evaluates blacklist, lockouts and the rolling failure count
// for id. Read failures deny the login and return an error wrapping
// models.ErrDefenseUnavailable together with the deny decision.
func (s *LoginDefenseService) CheckLoginAllowed(ctx context.Context, id LoginIdentity) (*LoginDecision, error) {
	id = id.normalized()
	if id.filter().IsEmpty() {
		return nil, fmt.Errorf("%w: login identity has no email, user or ip", models.ErrBadRequest)
	}

	now := s.clock.Now()
	since := now.Add(-s.config.LookbackWindow)

	var (
		blacklisted bool
		lockout     *models.AccountLockout
		failures    int
	)

	g, gctx := errgroup.WithContext(ctx)
	if id.IP != "" {
		g.Go(func() error {
			var err error
			blacklisted, err = s.isBlacklisted(gctx, id.IP, now)
			return err
		})
	}
	g.Go(func() error {
		var err error
		lockout, err = s.stores.Lockouts.FindActive(gctx, id.lockoutKeys(), now)
		return err
	})
	g.Go(func() error {
		// Failures before a manual unlock no longer count against the account.
		countFrom := since
		unlockedAt, err := s.stores.Lockouts.LastUnlockedAt(gctx, id.lockoutKeys())
		if err != nil {
			return err
		}
		if unlockedAt != nil && unlockedAt.After(countFrom) {
			countFrom = *unlockedAt
		}
		failures, err = s.stores.Attempts.CountFailed(gctx, id.filter(), countFrom)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("login defense read failed, denying login",
			slog.String("ip_address", id.IP),
			slog.Any("error", err))
		return s.record(&LoginDecision{
			Allowed:         false,
			Reason:          ReasonServiceUnavailable,
			CaptchaRequired: true,
		}), fmt.Errorf("%w: %w", models.ErrDefenseUnavailable, err)
	}

	if blacklisted {
		s.logger.Warn("login denied: ip blacklisted", slog.String("ip_address", id.IP))
		return s.record(&LoginDecision{Allowed: false, Reason: ReasonIPBlacklisted}), nil
	}

	if lockout != nil {
		lockedUntil := lockout.LockedUntil
		return s.record(&LoginDecision{
			Allowed:           false,
			Reason:            ReasonAccountLocked,
			LockedUntil:       &lockedUntil,
			RetryAfterSeconds: secondsUntil(lockedUntil, now),
			LockoutLevel:      lockout.Level,
			CaptchaRequired:   true,
			failures:          failures,
		}), nil
	}

	threshold := s.threshold(id.IsAdmin)
	captcha := failures >= s.config.CaptchaThreshold

	if failures >= threshold {
		decision := &LoginDecision{
			Allowed:         false,
			Reason:          ReasonTooManyAttempts,
			CaptchaRequired: true,
			failures:        failures,
		}

		if id.hasAccount() {
			if created, alert := s.createLockout(ctx, id, failures, now); created != nil {
				decision.LockedUntil = &created.LockedUntil
				decision.RetryAfterSeconds = secondsUntil(created.LockedUntil, now)
				decision.LockoutLevel = created.Level
				decision.Alerts = append(decision.Alerts, alert)
			}
		}

		decision.Alerts = append(decision.Alerts, s.escalateFromLogin(ctx, id, failures, since)...)
		return s.record(decision), nil
	}

	remaining := threshold - failures
	return s.record(&LoginDecision{
		Allowed:           true,
		CaptchaRequired:   captcha,
		AttemptsRemaining: &remaining,
		failures:          failures,
	}), nil
}

// ApplyFailure updates an allowing decision after the credential check failed,
// so the caller sees the state for its next attempt.
func (s *LoginDefenseService) ApplyFailure(d *LoginDecision) {
	if d == nil || !d.Allowed {
		return
	}
	d.failures++
	if d.AttemptsRemaining != nil {
		remaining := *d.AttemptsRemaining - 1
		if remaining < 0 {
			remaining = 0
		}
		d.AttemptsRemaining = &remaining
	}
	if d.failures >= s.config.CaptchaThreshold {
		d.CaptchaRequired = true
	}
}

// secondsUntil rounds the time left before until up to whole seconds
func secondsUntil(until, now time.Time) int {
	left := until.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (s *LoginDefenseService) record(d *LoginDecision) *LoginDecision {
	reason := d.Reason
	if d.Allowed {
		reason = ReasonAllowed
	}
	s.metrics.IncrementDecision(reason)
	return d
}

// createLockout writes a lockout for the account identity. Write failures are
// logged; the caller still denies the login.
func (s *LoginDefenseService) createLockout(ctx context.Context, id LoginIdentity, failures int, now time.Time) (*models.AccountLockout, PendingAlert) {
	level, duration := LockoutLevel(failures, id.IsAdmin)

	lockout := &models.AccountLockout{
		UserID:      id.UserID,
		IPAddress:   id.IP,
		Attempts:    failures,
		Level:       level,
		LockedUntil: now.Add(duration),
		CreatedAt:   now,
	}
	if id.Email != "" {
		email := id.Email
		lockout.Email = &email
	}
	if id.UserID != nil {
		lockout.Scope, lockout.Key = models.LockoutScopeUser, id.UserID.String()
	} else {
		lockout.Scope, lockout.Key = models.LockoutScopeEmail, id.Email
	}

	if err := s.stores.Lockouts.Create(ctx, lockout); err != nil {
		s.logger.Error("failed to create lockout",
			slog.String("scope", string(lockout.Scope)),
			slog.Int("level", level),
			slog.Any("error", err))
		return nil, PendingAlert{}
	}

	s.metrics.IncrementLockout(level, string(lockout.Scope))
	s.logger.Warn("account locked",
		slog.String("scope", string(lockout.Scope)),
		slog.Int("level", level),
		slog.Int("failed_attempts", failures),
		slog.Duration("lockout_duration", duration))
	s.audit.LogSecurityAction("account_locked", models.BlacklistAddedBySystem, lockoutSubject(lockout), map[string]string{
		"level":        strconv.Itoa(level),
		"attempts":     strconv.Itoa(failures),
		"locked_until": lockout.LockedUntil.Format(time.RFC3339),
	})

	return lockout, NewAccountLockedAlert(lockout, duration, now)
}

func lockoutSubject(l *models.AccountLockout) string {
	if l.Scope == models.LockoutScopeEmail {
		return string(l.Scope) + ":" + pkglogger.SanitizedEmail(l.Key)
	}
	return string(l.Scope) + ":" + l.Key
}

// escalateFromLogin counts failures for the IP alone and hands them to EscalateIP.
func (s *LoginDefenseService) escalateFromLogin(ctx context.Context, id LoginIdentity, failures int, since time.Time) []PendingAlert {
	if id.IP == "" {
		return nil
	}

	ipFailures := failures
	if id.hasAccount() {
		var err error
		ipFailures, err = s.stores.Attempts.CountFailed(ctx, models.AttemptFilter{IP: id.IP}, since)
		if err != nil {
			s.logger.Error("failed to count ip failures, skipping blacklist escalation",
				slog.String("ip_address", id.IP),
				slog.Any("error", err))
			return nil
		}
	}

	return s.EscalateIP(ctx, id.IP, ipFailures)
}

// EscalateIP blacklists ip when failures reach the blacklist threshold and
// no active entry exists. Repeated calls while blacklisted are no-ops. Store
// errors are logged and yield no alerts.
func (s *LoginDefenseService) EscalateIP(ctx context.Context, ip string, failures int) []PendingAlert {
	if ip == "" || failures < s.config.IPBlacklistThreshold {
		return nil
	}
	now := s.clock.Now()

	existing, err := s.stores.Blacklist.FindActive(ctx, ip, now)
	if err != nil {
		s.logger.Error("failed to read blacklist, skipping escalation",
			slog.String("ip_address", ip),
			slog.Any("error", err))
		return nil
	}
	if existing != nil {
		return nil
	}

	severity, ttl := BlacklistTier(failures)
	expiresAt := now.Add(ttl)
	description := fmt.Sprintf("automatically blacklisted after %d failed login attempts", failures)

	entry := &models.IPBlacklistEntry{
		IPAddress:   ip,
		Reason:      models.BlacklistReasonBruteForce,
		Severity:    severity,
		Description: &description,
		ExpiresAt:   &expiresAt,
		AddedBy:     models.BlacklistAddedBySystem,
		CreatedAt:   now,
	}

	if err := s.stores.Blacklist.Create(ctx, entry); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil
		}
		s.logger.Error("failed to blacklist ip",
			slog.String("ip_address", ip),
			slog.Any("error", err))
		return nil
	}

	s.afterBlacklist(ctx, entry, ttl)
	s.logger.Warn("ip auto-blacklisted",
		slog.String("ip_address", ip),
		slog.String("severity", string(severity)),
		slog.Int("failed_attempts", failures))

	return []PendingAlert{
		NewIPBlacklistedAlert(entry, failures, now),
		NewMultipleFailedAttemptsAlert(ip, "", failures, now),
	}
}

func (s *LoginDefenseService) afterBlacklist(ctx context.Context, entry *models.IPBlacklistEntry, ttl time.Duration) {
	origin := "manual"
	if entry.AddedBy == models.BlacklistAddedBySystem {
		origin = "system"
	}
	s.metrics.IncrementBlacklist(string(entry.Severity), origin)

	metadata := map[string]string{
		"reason":   string(entry.Reason),
		"severity": string(entry.Severity),
	}
	if entry.ExpiresAt != nil {
		metadata["expires_at"] = entry.ExpiresAt.Format(time.RFC3339)
	}
	s.audit.LogSecurityAction("ip_blacklisted", entry.AddedBy, entry.IPAddress, metadata)

	if s.cache != nil {
		if err := s.cache.Add(ctx, entry.IPAddress, ttl); err != nil {
			s.logger.Warn("failed to cache blacklist entry",
				slog.String("ip_address", entry.IPAddress),
				slog.Any("error", err))
		}
	}
}

// isBlacklisted consults the cache first. Only store errors are returned.
func (s *LoginDefenseService) isBlacklisted(ctx context.Context, ip string, now time.Time) (bool, error) {
	if s.cache != nil {
		hit, err := s.cache.Contains(ctx, ip)
		if err != nil {
			s.logger.Warn("blacklist cache lookup failed", slog.String("ip_address", ip), slog.Any("error", err))
		} else if hit {
			return true, nil
		}
	}

	entry, err := s.stores.Blacklist.FindActive(ctx, ip, now)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	if s.cache != nil {
		var ttl time.Duration
		if entry.ExpiresAt != nil {
			ttl = entry.ExpiresAt.Sub(now)
		}
		if err := s.cache.Add(ctx, ip, ttl); err != nil {
			s.logger.Warn("failed to cache blacklist entry", slog.String("ip_address", ip), slog.Any("error", err))
		}
	}
	return true, nil
}

// IsIPBlacklisted reports whether ip is actively blacklisted
func (s *LoginDefenseService) IsIPBlacklisted(ctx context.Context, ip string) (bool, error) {
	blacklisted, err := s.isBlacklisted(ctx, strings.TrimSpace(ip), s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrDefenseUnavailable, err)
	}
	return blacklisted, nil
}

// RecordLoginAttempt appends one attempt to the log. It is called for every
// login regardless of the defense decision.
func (s *LoginDefenseService) RecordLoginAttempt(ctx context.Context, in AttemptInput) error {
	attempt := &models.LoginAttempt{
		UserID:    in.UserID,
		IPAddress: strings.TrimSpace(in.IP),
		UserAgent: in.UserAgent,
		Success:   in.Success,
		CreatedAt: s.clock.Now(),
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		attempt.Email = &email
	}
	if !in.Success && in.FailureReason != "" {
		reason := in.FailureReason
		attempt.FailureReason = &reason
	}
	if attempt.IPAddress != "" || in.UserAgent != "" {
		fingerprint := generateDeviceFingerprint(attempt.IPAddress, in.UserAgent)
		attempt.DeviceFingerprint = &fingerprint
	}

	if err := s.stores.Attempts.Create(ctx, attempt); err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	s.metrics.IncrementAttempt(in.Success)
	return nil
}

// PurgeAttempts deletes attempts older than retention
func (s *LoginDefenseService) PurgeAttempts(ctx context.Context, retention time.Duration) (int64, error) {
	return s.stores.Attempts.DeleteOlderThan(ctx, s.clock.Now().Add(-retention))
}

// Unlock deactivates the active lockout for (scope, key)
func (s *LoginDefenseService) Unlock(ctx context.Context, scope models.LockoutScope, key, adminID string) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: unknown lockout scope %q", models.ErrBadRequest, scope)
	}
	key = strings.TrimSpace(key)
	if scope == models.LockoutScopeEmail {
		key = strings.ToLower(key)
	}
	if key == "" {
		return fmt.Errorf("%w: lockout key is required", models.ErrBadRequest)
	}

	if err := s.stores.Lockouts.Unlock(ctx, scope, key, adminID, s.clock.Now()); err != nil {
		return err
	}

	s.audit.LogSecurityAction("account_unlocked", adminID, lockoutSubject(&models.AccountLockout{Scope: scope, Key: key}), nil)
	return nil
}

// ListActiveLockouts lists lockouts currently in force
func (s *LoginDefenseService) ListActiveLockouts(ctx context.Context, limit, offset int) ([]*models.AccountLockout, error) {
	return s.stores.Lockouts.ListActive(ctx, s.clock.Now(), limit, offset)
}

// ListBlacklist lists entries currently in force
func (s *LoginDefenseService) ListBlacklist(ctx context.Context, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	return s.stores.Blacklist.ListActive(ctx, s.clock.Now(), limit, offset)
}

// BlacklistIP adds an operator-created entry. An already blacklisted IP yields models.ErrConflict.
func (s *LoginDefenseService) BlacklistIP(ctx context.Context, in ManualBlacklistInput) (*models.IPBlacklistEntry, error) {
	ip := net.ParseIP(strings.TrimSpace(in.IP))
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid ip address %q", models.ErrBadRequest, in.IP)
	}

	now := s.clock.Now()
	entry := &models.IPBlacklistEntry{
		IPAddress: ip.String(),
		Reason:    in.Reason,
		Severity:  in.Severity,
		AddedBy:   in.AddedBy,
		CreatedAt: now,
	}
	if entry.Reason == "" {
		entry.Reason = models.BlacklistReasonManual
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityHigh
	}
	if in.Description != "" {
		description := in.Description
		entry.Description = &description
	}

	var ttl time.Duration
	if in.TTL != nil {
		if *in.TTL <= 0 {
			return nil, fmt.Errorf("%w: ttl must be positive", models.ErrBadRequest)
		}
		ttl = *in.TTL
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	if err := s.stores.Blacklist.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.afterBlacklist(ctx, entry, ttl)
	return entry, nil
}

// RemoveBlacklist deactivates the entry for ip and evicts it from the cache
func (s *LoginDefenseService) RemoveBlacklist(ctx context.Context, ip, adminID string) error {
	ip = strings.TrimSpace(ip)
	if parsed := net.ParseIP(ip); parsed != nil {
		ip = parsed.String()
	}

	if err := s.stores.Blacklist.Remove(ctx, ip, adminID, s.clock.Now()); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Remove(ctx, ip); err != nil {
			s.logger.Warn("failed to evict blacklist cache entry", slog.String("ip_address", ip), slog.Any("error", err))
		}
	}
	s.audit.LogSecurityAction("ip_unblacklisted", adminID, ip, nil)
	return nil
}

// generateDeviceFingerprint creates a hash of IP + User-Agent for device identification
func generateDeviceFingerprint(ipAddress, userAgent string) string {
	hash := sha256.Sum256([]byte(ipAddress + ":" + userAgent))
	return fmt.Sprintf("%x", hash)[:32]
}
