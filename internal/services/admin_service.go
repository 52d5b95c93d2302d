package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SecurityOverview summarizes the alert queue for the admin dashboard.
type SecurityOverview struct {
	UnreadAlerts   int `json:"unread_alerts"`
	UnreadCritical int `json:"unread_critical"`
	AlertsLast24h  int `json:"alerts_last_24h"`
	ActiveLockouts int `json:"active_lockouts"`
}

// overviewLockoutScan caps how many lockouts the overview counts.
const overviewLockoutScan = 1000

// AdminService backs the /admin/security endpoints.
type AdminService struct {
	defense *LoginDefenseService
	alerts  *AlertService
	clock   Clock
	logger  *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(defense *LoginDefenseService, alerts *AlertService, clock Clock, logger *slog.Logger) *AdminService {
	return &AdminService{
		defense: defense,
		alerts:  alerts,
		clock:   clock,
		logger:  logger,
	}
}

// Overview returns alert and lockout counts.
func (s *AdminService) Overview(ctx context.Context) (*SecurityOverview, error) {
	var overview SecurityOverview
	since := s.clock.Now().Add(-24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overview.UnreadAlerts, err = s.alerts.Count(gctx, models.AlertFilter{UnreadOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		overview.UnreadCritical, err = s.alerts.Count(gctx, models.AlertFilter{UnreadOnly: true, Severity: models.SeverityCritical})
		return err
	})
	g.Go(func() error {
		var err error
		overview.AlertsLast24h, err = s.alerts.Count(gctx, models.AlertFilter{Since: &since})
		return err
	})
	g.Go(func() error {
		lockouts, err := s.defense.ListActiveLockouts(gctx, overviewLockoutScan, 0)
		overview.ActiveLockouts = len(lockouts)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("security overview: failed to load counts", slog.Any("error", err))
		return nil, err
	}
	return &overview, nil
}

func (s *AdminService) ListAlerts(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, int, error) {
	alerts, err := s.alerts.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.alerts.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (s *AdminService) UnreadAlertCount(ctx context.Context) (int, error) {
	return s.alerts.CountUnread(ctx)
}

func (s *AdminService) MarkAlertRead(ctx context.Context, id uuid.UUID, adminID string) error {
	return s.alerts.MarkRead(ctx, id, adminID)
}

func (s *AdminService) ListLockouts(ctx context.Context, limit, offset int) ([]*models.AccountLockout, error) {
	return s.defense.ListActiveLockouts(ctx, limit, offset)
}

func (s *AdminService) Unlock(ctx context.Context, scope models.LockoutScope, key, adminID string) error {
	if err := s.defense.Unlock(ctx, scope, key, adminID); err != nil {
		return err
	}
	s.logger.Info("lockout cleared by admin", slog.String("admin_id", adminID), slog.String("scope", string(scope)))
	return nil
}

func (s *AdminService) ListBlacklist(ctx context.Context, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	return s.defense.ListBlacklist(ctx, limit, offset)
}

// AddBlacklist creates a manual entry and emits an ip_blacklisted alert for it.
func (s *AdminService) AddBlacklist(ctx context.Context, in ManualBlacklistInput) (*models.IPBlacklistEntry, error) {
	entry, err := s.defense.BlacklistIP(ctx, in)
	if err != nil {
		return nil, err
	}
	s.alerts.DispatchAsync(NewIPBlacklistedAlert(entry, 0, s.clock.Now()))
	return entry, nil
}

func (s *AdminService) RemoveBlacklist(ctx context.Context, ip, adminID string) error {
	return s.defense.RemoveBlacklist(ctx, ip, adminID)
}
