package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminAlertRepository persists admin alerts
type AdminAlertRepository struct {
	pool *pgxpool.Pool
}

// NewAdminAlertRepository creates a new AdminAlertRepository
func NewAdminAlertRepository(db *database.DB) *AdminAlertRepository {
	return &AdminAlertRepository{pool: db.Pool}
}

const alertColumns = `id, alert_type, severity, title, message, details, is_read, read_at, read_by, created_at`

func scanAlertRow(row rowScanner) (*models.AdminAlert, error) {
	var a models.AdminAlert

	err := row.Scan(
		&a.ID, &a.Type, &a.Severity, &a.Title, &a.Message, &a.Details,
		&a.IsRead, &a.ReadAt, &a.ReadBy, &a.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func scanAlertRows(rows pgx.Rows) ([]*models.AdminAlert, error) {
	defer rows.Close()

	alerts := make([]*models.AdminAlert, 0)
	for rows.Next() {
		a, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

func alertWhere(filter models.AlertFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.Type != "" {
		where.add("alert_type = ?", filter.Type)
	}
	if filter.Severity != "" {
		where.add("severity = ?", filter.Severity)
	}
	if filter.UnreadOnly {
		where.add("NOT is_read")
	}
	if filter.Since != nil {
		where.add("created_at >= ?", *filter.Since)
	}
	return where
}

// Create inserts an alert and fills in its id
func (r *AdminAlertRepository) Create(ctx context.Context, alert *models.AdminAlert) error {
	query := `
		INSERT INTO admin_alerts (alert_type, severity, title, message, details, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		RETURNING id
	`

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		alert.Type, alert.Severity, alert.Title, alert.Message, alert.Details, alert.CreatedAt,
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", database.MapPostgresError(err))
	}
	return nil
}

// List returns alerts matching filter, newest first
func (r *AdminAlertRepository) List(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, error) {
	where := alertWhere(filter)
	query := `SELECT ` + alertColumns + ` FROM admin_alerts` + where.clause() +
		` ORDER BY created_at DESC LIMIT ` + where.next(limit) + ` OFFSET ` + where.next(offset)

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	return scanAlertRows(rows)
}

// Count returns the number of alerts matching filter
func (r *AdminAlertRepository) Count(ctx context.Context, filter models.AlertFilter) (int, error) {
	where := alertWhere(filter)
	query := `SELECT COUNT(*) FROM admin_alerts` + where.clause()

	var count int
	if err := r.pool.QueryRow(ctx, query, where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// MarkRead flags an alert as read. Already-read alerts keep their original reader.
func (r *AdminAlertRepository) MarkRead(ctx context.Context, id uuid.UUID, readBy string, at time.Time) error {
	query := `
		UPDATE admin_alerts
		SET is_read = TRUE,
		    read_at = COALESCE(read_at, $3),
		    read_by = COALESCE(read_by, $2)
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, readBy, at)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
