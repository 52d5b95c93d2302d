package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/donorguard/internal/database"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// DonorRepository reads donor profiles by geohash cell
type DonorRepository struct {
	pool *pgxpool.Pool
}

// NewDonorRepository creates a new DonorRepository
func NewDonorRepository(db *database.DB) *DonorRepository {
	return &DonorRepository{pool: db.Pool}
}

const donorColumns = `id, user_id, name, blood_type, latitude, longitude, geohash,
	is_available, last_donation_at, created_at, updated_at`

func scanDonorRow(row rowScanner) (*models.Donor, error) {
	var d models.Donor

	err := row.Scan(
		&d.ID, &d.UserID, &d.Name, &d.BloodType, &d.Latitude, &d.Longitude, &d.Geohash,
		&d.IsAvailable, &d.LastDonationAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &d, nil
}

func scanDonorRows(rows pgx.Rows) ([]*models.Donor, error) {
	defer rows.Close()

	donors := make([]*models.Donor, 0)
	for rows.Next() {
		d, err := scanDonorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donor: %w", err)
		}
		donors = append(donors, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donor rows: %w", err)
	}
	return donors, nil
}

// FindAvailableInCells returns available donors whose geohash starts with one of
// cells. Cells are matched as LIKE prefixes against the bare column, which
// idx_donors_geohash (text_pattern_ops) is built on.
func (r *DonorRepository) FindAvailableInCells(ctx context.Context, cells []string) ([]*models.Donor, error) {
	if len(cells) == 0 {
		return []*models.Donor{}, nil
	}

	query := `SELECT ` + donorColumns + ` FROM donors
		WHERE is_available AND geohash LIKE ANY($1)`

	rows, err := r.pool.Query(ctx, query, pq.Array(prefixPatterns(cells)))
	if err != nil {
		return nil, fmt.Errorf("failed to query donors: %w", err)
	}
	return scanDonorRows(rows)
}

// prefixPatterns turns geohash cells into LIKE prefix patterns. Geohash
// characters never include the LIKE wildcards.
func prefixPatterns(cells []string) []string {
	patterns := make([]string, len(cells))
	for i, cell := range cells {
		patterns[i] = cell + "%"
	}
	return patterns
}

// Create inserts a donor profile. The caller supplies the geohash.
func (r *DonorRepository) Create(ctx context.Context, donor *models.Donor) (*models.Donor, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO donors (user_id, name, blood_type, latitude, longitude, geohash, is_available, last_donation_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + donorColumns

	created, err := scanDonorRow(r.pool.QueryRow(ctx, query,
		donor.UserID, donor.Name, donor.BloodType, donor.Latitude, donor.Longitude,
		donor.Geohash, donor.IsAvailable, donor.LastDonationAt, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create donor: %w", err)
	}
	return created, nil
}
