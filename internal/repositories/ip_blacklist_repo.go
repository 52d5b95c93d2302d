package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// BlacklistRepository persists IP blacklist entries
type BlacklistRepository struct {
	db *database.DB
}

// NewBlacklistRepository creates a new BlacklistRepository
func NewBlacklistRepository(db *database.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

const blacklistColumns = `id, ip_address, reason, severity, description, expires_at,
	is_active, added_by, removed_by, removed_at, created_at`

func scanBlacklistRow(row rowScanner) (*models.IPBlacklistEntry, error) {
	var e models.IPBlacklistEntry

	err := row.Scan(
		&e.ID, &e.IPAddress, &e.Reason, &e.Severity, &e.Description, &e.ExpiresAt,
		&e.IsActive, &e.AddedBy, &e.RemovedBy, &e.RemovedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &e, nil
}

func scanBlacklistRows(rows pgx.Rows) ([]*models.IPBlacklistEntry, error) {
	defer rows.Close()

	entries := make([]*models.IPBlacklistEntry, 0)
	for rows.Next() {
		e, err := scanBlacklistRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blacklist rows: %w", err)
	}
	return entries, nil
}

// FindActive returns the entry blocking ip at now, or nil
func (r *BlacklistRepository) FindActive(ctx context.Context, ip string, now time.Time) (*models.IPBlacklistEntry, error) {
	query := `SELECT ` + blacklistColumns + ` FROM ip_blacklist
		WHERE ip_address = $1 AND is_active AND (expires_at IS NULL OR expires_at > $2)
		LIMIT 1`

	entry, err := scanBlacklistRow(r.db.Pool.QueryRow(ctx, query, ip, now))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return entry, nil
}

// Create inserts an active entry. Expired rows still flagged active are retired
// first; a live entry for the same IP yields models.ErrConflict.
func (r *BlacklistRepository) Create(ctx context.Context, entry *models.IPBlacklistEntry) error {
	retire := `
		UPDATE ip_blacklist SET is_active = FALSE
		WHERE ip_address = $1 AND is_active AND expires_at IS NOT NULL AND expires_at <= $2
	`
	insert := `
		INSERT INTO ip_blacklist (ip_address, reason, severity, description, expires_at, is_active, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)
		RETURNING id
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, retire, entry.IPAddress, entry.CreatedAt); err != nil {
			return err
		}
		return tx.QueryRow(ctx, insert,
			entry.IPAddress, entry.Reason, entry.Severity, entry.Description,
			entry.ExpiresAt, entry.AddedBy, entry.CreatedAt,
		).Scan(&entry.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", database.MapPostgresError(err))
	}

	entry.IsActive = true
	return nil
}

// Remove deactivates the active entry for ip
func (r *BlacklistRepository) Remove(ctx context.Context, ip, removedBy string, at time.Time) error {
	query := `
		UPDATE ip_blacklist
		SET is_active = FALSE, removed_by = $2, removed_at = $3
		WHERE ip_address = $1 AND is_active
	`

	tag, err := r.db.Pool.Exec(ctx, query, ip, removedBy, at)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListActive lists entries blocking at now, newest first
func (r *BlacklistRepository) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	query := `SELECT ` + blacklistColumns + ` FROM ip_blacklist
		WHERE is_active AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return scanBlacklistRows(rows)
}
