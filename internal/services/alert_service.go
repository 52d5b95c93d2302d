package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/donorguard/internal/metrics"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/google/uuid"
)

// AdminAlertRepository defines the persistence operations for admin alerts
type AdminAlertRepository interface {
	Create(ctx context.Context, alert *models.AdminAlert) error
	List(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, error)
	Count(ctx context.Context, filter models.AlertFilter) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, readBy string, at time.Time) error
}

// AlertNotifier forwards critical alerts out of band
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert *models.AdminAlert) error
}

// AlertServiceConfig holds dispatch settings
type AlertServiceConfig struct {
	DispatchTimeout time.Duration
}

// AlertService persists pending alerts and serves the admin alert queue.
// Dispatch failures are logged and never returned to the caller.
type AlertService struct {
	repo     AdminAlertRepository
	notifier AlertNotifier
	clock    Clock
	metrics  *metrics.Metrics
	config   AlertServiceConfig
	logger   *slog.Logger

	inflight sync.WaitGroup
}

// NewAlertService creates a new AlertService. notifier and m may be nil.
func NewAlertService(repo AdminAlertRepository, notifier AlertNotifier, clock Clock, m *metrics.Metrics, config AlertServiceConfig, logger *slog.Logger) *AlertService {
	if config.DispatchTimeout <= 0 {
		config.DispatchTimeout = 5 * time.Second
	}
	return &AlertService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		metrics:  m,
		config:   config,
		logger:   logger,
	}
}

// Dispatch persists each alert and returns how many were stored.
func (s *AlertService) Dispatch(ctx context.Context, alerts ...PendingAlert) int {
	stored := 0
	for _, pending := range alerts {
		alert := pending.toModel(s.clock.Now())

		if err := s.repo.Create(ctx, alert); err != nil {
			s.logger.Error("failed to persist admin alert",
				slog.String("type", string(alert.Type)),
				slog.String("severity", string(alert.Severity)),
				slog.Any("error", err))
			continue
		}
		stored++
		s.metrics.IncrementAlert(string(alert.Type), string(alert.Severity))

		s.logger.Info("admin alert emitted",
			slog.String("alert_id", alert.ID.String()),
			slog.String("type", string(alert.Type)),
			slog.String("severity", string(alert.Severity)))

		if alert.Severity == models.SeverityCritical && s.notifier != nil {
			if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
				s.logger.Warn("failed to notify critical alert",
					slog.String("alert_id", alert.ID.String()),
					slog.Any("error", err))
			}
		}
	}
	return stored
}

// DispatchAsync runs Dispatch on a detached context bounded by the dispatch timeout.
func (s *AlertService) DispatchAsync(alerts ...PendingAlert) {
	if len(alerts) == 0 {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.DispatchTimeout)
		defer cancel()

		s.Dispatch(ctx, alerts...)
	}()
}

// Wait blocks until every DispatchAsync call has finished.
func (s *AlertService) Wait() {
	s.inflight.Wait()
}

// List returns alerts matching filter, newest first
func (s *AlertService) List(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, error) {
	alerts, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		s.logger.Error("failed to list admin alerts", slog.Any("error", err))
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Count returns the number of alerts matching filter
func (s *AlertService) Count(ctx context.Context, filter models.AlertFilter) (int, error) {
	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

// CountUnread returns the number of unread alerts
func (s *AlertService) CountUnread(ctx context.Context) (int, error) {
	return s.Count(ctx, models.AlertFilter{UnreadOnly: true})
}

// MarkRead flags an alert as read by readerID
func (s *AlertService) MarkRead(ctx context.Context, id uuid.UUID, readerID string) error {
	if err := s.repo.MarkRead(ctx, id, readerID, s.clock.Now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to mark alert read", slog.String("alert_id", id.String()), slog.Any("error", err))
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}
