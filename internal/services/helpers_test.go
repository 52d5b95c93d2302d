package services_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkglogger "github.com/BradenHooton/donorguard/pkg/logger"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeClock is a settable Clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory implementation of every defense repository.
// The *Err fields force the matching operation to fail.
type memStore struct {
	mu        sync.Mutex
	attempts  []*models.LoginAttempt
	lockouts  []*models.AccountLockout
	blacklist []*models.IPBlacklistEntry
	alerts    []*models.AdminAlert

	countErr           error
	lockoutFindErr     error
	lockoutCreateErr   error
	blacklistFindErr   error
	blacklistCreateErr error
	alertCreateErr     error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) stores() services.DefenseStores {
	return services.DefenseStores{
		Attempts:  attemptStore{m},
		Lockouts:  lockoutStore{m},
		Blacklist: blacklistStore{m},
	}
}

type attemptStore struct{ m *memStore }

func (s attemptStore) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	attempt.ID = uuid.New()
	s.m.attempts = append(s.m.attempts, attempt)
	return nil
}

func (s attemptStore) CountFailed(ctx context.Context, filter models.AttemptFilter, since time.Time) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.countErr != nil {
		return 0, s.m.countErr
	}

	count := 0
	for _, a := range s.m.attempts {
		if a.Success || a.CreatedAt.Before(since) {
			continue
		}
		if filter.Email != "" && (a.Email == nil || *a.Email != filter.Email) {
			continue
		}
		if filter.UserID != nil && (a.UserID == nil || *a.UserID != *filter.UserID) {
			continue
		}
		if filter.IP != "" && a.IPAddress != filter.IP {
			continue
		}
		count++
	}
	return count, nil
}

func (s attemptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	kept := s.m.attempts[:0]
	var removed int64
	for _, a := range s.m.attempts {
		if a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.m.attempts = kept
	return removed, nil
}

type lockoutStore struct{ m *memStore }

func (s lockoutStore) FindActive(ctx context.Context, keys []models.LockoutKey, now time.Time) (*models.AccountLockout, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.lockoutFindErr != nil {
		return nil, s.m.lockoutFindErr
	}

	var found *models.AccountLockout
	for _, l := range s.m.lockouts {
		if !l.IsActiveAt(now) {
			continue
		}
		for _, k := range keys {
			if l.Scope == k.Scope && l.Key == k.Key {
				if found == nil || l.LockedUntil.After(found.LockedUntil) {
					found = l
				}
			}
		}
	}
	return found, nil
}

func (s lockoutStore) Create(ctx context.Context, lockout *models.AccountLockout) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.lockoutCreateErr != nil {
		return s.m.lockoutCreateErr
	}

	for _, l := range s.m.lockouts {
		if l.IsActive && l.Scope == lockout.Scope && l.Key == lockout.Key {
			l.IsActive = false
		}
	}
	lockout.ID = uuid.New()
	lockout.IsActive = true
	s.m.lockouts = append(s.m.lockouts, lockout)
	return nil
}

func (s lockoutStore) Unlock(ctx context.Context, scope models.LockoutScope, key, unlockedBy string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, l := range s.m.lockouts {
		if l.IsActive && l.Scope == scope && l.Key == key {
			l.IsActive = false
			l.UnlockedBy = &unlockedBy
			l.UnlockedAt = &at
			return nil
		}
	}
	return models.ErrNotFound
}

func (s lockoutStore) LastUnlockedAt(ctx context.Context, keys []models.LockoutKey) (*time.Time, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var last *time.Time
	for _, l := range s.m.lockouts {
		if l.UnlockedAt == nil {
			continue
		}
		for _, k := range keys {
			if l.Scope == k.Scope && l.Key == k.Key && (last == nil || l.UnlockedAt.After(*last)) {
				last = l.UnlockedAt
			}
		}
	}
	return last, nil
}

func (s lockoutStore) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.AccountLockout, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := make([]*models.AccountLockout, 0)
	for _, l := range s.m.lockouts {
		if l.IsActiveAt(now) {
			out = append(out, l)
		}
	}
	return page(out, limit, offset), nil
}

type blacklistStore struct{ m *memStore }

func (s blacklistStore) FindActive(ctx context.Context, ip string, now time.Time) (*models.IPBlacklistEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.blacklistFindErr != nil {
		return nil, s.m.blacklistFindErr
	}

	for _, e := range s.m.blacklist {
		if e.IPAddress == ip && e.IsActiveAt(now) {
			return e, nil
		}
	}
	return nil, nil
}

func (s blacklistStore) Create(ctx context.Context, entry *models.IPBlacklistEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.blacklistCreateErr != nil {
		return s.m.blacklistCreateErr
	}

	for _, e := range s.m.blacklist {
		if e.IPAddress == entry.IPAddress && e.IsActiveAt(entry.CreatedAt) {
			return models.ErrConflict
		}
	}
	entry.ID = uuid.New()
	entry.IsActive = true
	s.m.blacklist = append(s.m.blacklist, entry)
	return nil
}

func (s blacklistStore) Remove(ctx context.Context, ip, removedBy string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, e := range s.m.blacklist {
		if e.IPAddress == ip && e.IsActive {
			e.IsActive = false
			e.RemovedBy = &removedBy
			e.RemovedAt = &at
			return nil
		}
	}
	return models.ErrNotFound
}

func (s blacklistStore) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := make([]*models.IPBlacklistEntry, 0)
	for _, e := range s.m.blacklist {
		if e.IsActiveAt(now) {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

// alertRepo adapts memStore to services.AdminAlertRepository
type alertRepo struct{ m *memStore }

func (s alertRepo) Create(ctx context.Context, alert *models.AdminAlert) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.alertCreateErr != nil {
		return s.m.alertCreateErr
	}
	alert.ID = uuid.New()
	s.m.alerts = append(s.m.alerts, alert)
	return nil
}

func (s alertRepo) matching(filter models.AlertFilter) []*models.AdminAlert {
	out := make([]*models.AdminAlert, 0)
	for _, a := range s.m.alerts {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.UnreadOnly && a.IsRead {
			continue
		}
		if filter.Since != nil && a.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s alertRepo) List(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return page(s.matching(filter), limit, offset), nil
}

func (s alertRepo) Count(ctx context.Context, filter models.AlertFilter) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.matching(filter)), nil
}

func (s alertRepo) MarkRead(ctx context.Context, id uuid.UUID, readBy string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.alerts {
		if a.ID == id {
			if !a.IsRead {
				a.IsRead = true
				a.ReadBy = &readBy
				a.ReadAt = &at
			}
			return nil
		}
	}
	return models.ErrNotFound
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *memStore) activeBlacklist() []*models.IPBlacklistEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.IPBlacklistEntry, 0)
	for _, e := range m.blacklist {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) activeLockouts() []*models.AccountLockout {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AccountLockout, 0)
	for _, l := range m.lockouts {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) storedAlerts() []*models.AdminAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AdminAlert(nil), m.alerts...)
}

// memCache is an in-memory BlacklistCache
type memCache struct {
	mu     sync.Mutex
	ips    map[string]time.Duration
	getErr error
}

func newMemCache() *memCache {
	return &memCache{ips: make(map[string]time.Duration)}
}

func (c *memCache) Contains(ctx context.Context, ip string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	_, ok := c.ips[ip]
	return ok, nil
}

func (c *memCache) Add(ctx context.Context, ip string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ips[ip] = ttl
	return nil
}

func (c *memCache) Remove(ctx context.Context, ip string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ips, ip)
	return nil
}

// MockAlertNotifier records notified alerts
type MockAlertNotifier struct {
	mu             sync.Mutex
	Notified       []*models.AdminAlert
	NotifyAlertErr error
}

func (n *MockAlertNotifier) NotifyAlert(ctx context.Context, alert *models.AdminAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notified = append(n.Notified, alert)
	return n.NotifyAlertErr
}

// MockUserRepository implements services.UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func defaultDefenseConfig() services.LoginDefenseConfig {
	return services.LoginDefenseConfig{
		LookbackWindow:       time.Hour,
		MaxAttempts:          5,
		AdminMaxAttempts:     3,
		CaptchaThreshold:     2,
		IPBlacklistThreshold: 10,
	}
}

type defenseFixture struct {
	store   *memStore
	cache   *memCache
	clock   *fakeClock
	defense *services.LoginDefenseService
}

func newDefenseFixture() *defenseFixture {
	store := newMemStore()
	cache := newMemCache()
	clock := newFakeClock()
	logger := testLogger()

	defense := services.NewLoginDefenseService(
		store.stores(),
		cache,
		clock,
		nil,
		defaultDefenseConfig(),
		logger,
		pkglogger.NewAuditLogger(logger),
	)
	return &defenseFixture{store: store, cache: cache, clock: clock, defense: defense}
}

// fail records n failed attempts one second apart.
func (f *defenseFixture) fail(n int, email, ip string, userID *uuid.UUID) {
	for i := 0; i < n; i++ {
		_ = f.defense.RecordLoginAttempt(context.Background(), services.AttemptInput{
			Email:         email,
			UserID:        userID,
			IP:            ip,
			UserAgent:     "Mozilla/5.0",
			Success:       false,
			FailureReason: models.FailureReasonInvalidCredentials,
		})
		f.clock.Advance(time.Second)
	}
}

func alertsOfType(alerts []services.PendingAlert, t models.AlertType) []services.PendingAlert {
	out := make([]services.PendingAlert, 0)
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}
