package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Create appends a login attempt and fills in its id and timestamp
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (user_id, email, ip_address, user_agent, success, failure_reason, device_fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		attempt.UserID,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.DeviceFingerprint,
		attempt.CreatedAt,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
	}

	return nil
}

// CountFailed counts failed attempts since the given time. Every populated
// filter field narrows the same query.
func (r *LoginAttemptRepository) CountFailed(ctx context.Context, filter models.AttemptFilter, since time.Time) (int, error) {
	var where whereBuilder
	where.add("success = FALSE")
	where.add("created_at >= ?", since)
	if filter.Email != "" {
		where.add("email = ?", filter.Email)
	}
	if filter.UserID != nil {
		where.add("user_id = ?", *filter.UserID)
	}
	if filter.IP != "" {
		where.add("ip_address = ?", filter.IP)
	}

	query := "SELECT COUNT(*) FROM login_attempts" + where.clause()

	var count int
	if err := r.pool.QueryRow(ctx, query, where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}
	return count, nil
}

// DeleteOlderThan purges attempts created before cutoff and returns the number removed
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE created_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
