package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// LockoutRepository persists account lockouts
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

const lockoutColumns = `id, user_id, email, ip_address, scope, lockout_key, attempts, level,
	locked_until, is_active, unlocked_by, unlocked_at, created_at`

func scanLockoutRow(row rowScanner) (*models.AccountLockout, error) {
	var l models.AccountLockout

	err := row.Scan(
		&l.ID, &l.UserID, &l.Email, &l.IPAddress, &l.Scope, &l.Key, &l.Attempts, &l.Level,
		&l.LockedUntil, &l.IsActive, &l.UnlockedBy, &l.UnlockedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &l, nil
}

func scanLockoutRows(rows pgx.Rows) ([]*models.AccountLockout, error) {
	defer rows.Close()

	lockouts := make([]*models.AccountLockout, 0)
	for rows.Next() {
		l, err := scanLockoutRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lockout: %w", err)
		}
		lockouts = append(lockouts, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lockout rows: %w", err)
	}
	return lockouts, nil
}

// FindActive returns the longest-running active lockout matching any of keys,
// or nil when none is in force at now.
func (r *LockoutRepository) FindActive(ctx context.Context, keys []models.LockoutKey, now time.Time) (*models.AccountLockout, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var where whereBuilder
	where.add("is_active")
	where.add("locked_until > ?", now)
	matchKeys(&where, keys)

	query := `SELECT ` + lockoutColumns + ` FROM account_lockouts` + where.clause() +
		` ORDER BY locked_until DESC LIMIT 1`

	lockout, err := scanLockoutRow(r.db.Pool.QueryRow(ctx, query, where.args...))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active lockouts: %w", err)
	}
	return lockout, nil
}

// LastUnlockedAt returns the most recent manual unlock of any of keys, or nil
// when none of them was ever unlocked.
func (r *LockoutRepository) LastUnlockedAt(ctx context.Context, keys []models.LockoutKey) (*time.Time, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var where whereBuilder
	where.add("unlocked_at IS NOT NULL")
	matchKeys(&where, keys)

	var at *time.Time
	query := `SELECT MAX(unlocked_at) FROM account_lockouts` + where.clause()
	if err := r.db.Pool.QueryRow(ctx, query, where.args...).Scan(&at); err != nil {
		return nil, fmt.Errorf("failed to query last unlock: %w", err)
	}
	return at, nil
}

func matchKeys(where *whereBuilder, keys []models.LockoutKey) {
	ors := make([]string, 0, len(keys))
	for _, k := range keys {
		ors = append(ors, fmt.Sprintf("(scope = %s AND lockout_key = %s)", where.next(string(k.Scope)), where.next(k.Key)))
	}
	where.conds = append(where.conds, "("+strings.Join(ors, " OR ")+")")
}

// Create inserts a lockout, deactivating any prior active row for the same
// (scope, key) in the same transaction.
func (r *LockoutRepository) Create(ctx context.Context, lockout *models.AccountLockout) error {
	deactivate := `
		UPDATE account_lockouts SET is_active = FALSE
		WHERE scope = $1 AND lockout_key = $2 AND is_active
	`
	insert := `
		INSERT INTO account_lockouts (user_id, email, ip_address, scope, lockout_key, attempts, level, locked_until, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		RETURNING id
	`

	if lockout.CreatedAt.IsZero() {
		lockout.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deactivate, lockout.Scope, lockout.Key); err != nil {
			return err
		}
		return tx.QueryRow(ctx, insert,
			lockout.UserID, lockout.Email, lockout.IPAddress, lockout.Scope, lockout.Key,
			lockout.Attempts, lockout.Level, lockout.LockedUntil, lockout.CreatedAt,
		).Scan(&lockout.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to create lockout: %w", database.MapPostgresError(err))
	}

	lockout.IsActive = true
	return nil
}

// Unlock deactivates the active lockout for (scope, key)
func (r *LockoutRepository) Unlock(ctx context.Context, scope models.LockoutScope, key, unlockedBy string, at time.Time) error {
	query := `
		UPDATE account_lockouts
		SET is_active = FALSE, unlocked_by = $3, unlocked_at = $4
		WHERE scope = $1 AND lockout_key = $2 AND is_active
	`

	tag, err := r.db.Pool.Exec(ctx, query, scope, key, unlockedBy, at)
	if err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListActive lists lockouts still in force at now, newest first
func (r *LockoutRepository) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.AccountLockout, error) {
	query := `SELECT ` + lockoutColumns + ` FROM account_lockouts
		WHERE is_active AND locked_until > $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", err)
	}
	return scanLockoutRows(rows)
}
