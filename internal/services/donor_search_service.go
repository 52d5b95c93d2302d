package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/BradenHooton/donorguard/internal/geo"
	"github.com/BradenHooton/donorguard/internal/metrics"
	"github.com/BradenHooton/donorguard/internal/models"
)

// MaxSearchRadiusKm bounds donor searches
const MaxSearchRadiusKm = 500

// DonorRepository reads donors by geohash cell
type DonorRepository interface {
	FindAvailableInCells(ctx context.Context, cells []string) ([]*models.Donor, error)
}

// donorsFor maps a recipient blood type to the donor types it can receive.
var donorsFor = map[string][]string{
	models.BloodTypeONeg:  {models.BloodTypeONeg},
	models.BloodTypeOPos:  {models.BloodTypeONeg, models.BloodTypeOPos},
	models.BloodTypeANeg:  {models.BloodTypeONeg, models.BloodTypeANeg},
	models.BloodTypeAPos:  {models.BloodTypeONeg, models.BloodTypeOPos, models.BloodTypeANeg, models.BloodTypeAPos},
	models.BloodTypeBNeg:  {models.BloodTypeONeg, models.BloodTypeBNeg},
	models.BloodTypeBPos:  {models.BloodTypeONeg, models.BloodTypeOPos, models.BloodTypeBNeg, models.BloodTypeBPos},
	models.BloodTypeABNeg: {models.BloodTypeONeg, models.BloodTypeANeg, models.BloodTypeBNeg, models.BloodTypeABNeg},
	models.BloodTypeABPos: {
		models.BloodTypeONeg, models.BloodTypeOPos, models.BloodTypeANeg, models.BloodTypeAPos,
		models.BloodTypeBNeg, models.BloodTypeBPos, models.BloodTypeABNeg, models.BloodTypeABPos,
	},
}

// CanDonate reports whether a donor of donorType can give to recipientType.
func CanDonate(donorType, recipientType string) bool {
	for _, t := range donorsFor[recipientType] {
		if t == donorType {
			return true
		}
	}
	return false
}

// DonorSearchQuery is a radius search around a point. An empty BloodType
// returns every available donor.
type DonorSearchQuery struct {
	Lat       float64
	Lng       float64
	RadiusKm  float64
	BloodType string
}

// DonorSearchResult lists matches ordered by distance
type DonorSearchResult struct {
	Cells     []string             `json:"cells"`
	Precision int                  `json:"precision"`
	Donors    []*models.DonorMatch `json:"donors"`
}

// DonorSearchService finds donors near a point with the geohash index
type DonorSearchService struct {
	repo    DonorRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDonorSearchService creates a new DonorSearchService
func NewDonorSearchService(repo DonorRepository, m *metrics.Metrics, logger *slog.Logger) *DonorSearchService {
	return &DonorSearchService{repo: repo, metrics: m, logger: logger}
}

// Search queries candidate cells, then keeps donors within the true radius.
func (s *DonorSearchService) Search(ctx context.Context, q DonorSearchQuery) (*DonorSearchResult, error) {
	if err := validateSearch(&q); err != nil {
		return nil, err
	}

	precision := geo.PrecisionForRadius(q.RadiusKm)
	cells := geo.CellsInRadius(q.Lat, q.Lng, q.RadiusKm)
	s.metrics.ObserveSearchCells(len(cells))

	candidates, err := s.repo.FindAvailableInCells(ctx, cells)
	if err != nil {
		s.logger.Error("donor search query failed", slog.Int("cells", len(cells)), slog.Any("error", err))
		return nil, fmt.Errorf("search donors: %w", err)
	}

	matches := make([]*models.DonorMatch, 0, len(candidates))
	for _, d := range candidates {
		if q.BloodType != "" && !CanDonate(d.BloodType, q.BloodType) {
			continue
		}
		distance := geo.HaversineKm(q.Lat, q.Lng, d.Latitude, d.Longitude)
		if distance > q.RadiusKm {
			continue
		}
		matches = append(matches, &models.DonorMatch{Donor: d, DistanceKm: math.Round(distance*100) / 100})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})

	s.logger.Debug("donor search completed",
		slog.Int("precision", precision),
		slog.Int("cells", len(cells)),
		slog.Int("candidates", len(candidates)),
		slog.Int("matches", len(matches)))

	return &DonorSearchResult{Cells: cells, Precision: precision, Donors: matches}, nil
}

func validateSearch(q *DonorSearchQuery) error {
	if math.IsNaN(q.Lat) || q.Lat < -90 || q.Lat > 90 {
		return fmt.Errorf("%w: latitude must be within [-90, 90]", models.ErrBadRequest)
	}
	if math.IsNaN(q.Lng) || q.Lng < -180 || q.Lng > 180 {
		return fmt.Errorf("%w: longitude must be within [-180, 180]", models.ErrBadRequest)
	}
	if math.IsNaN(q.RadiusKm) || q.RadiusKm <= 0 || q.RadiusKm > MaxSearchRadiusKm {
		return fmt.Errorf("%w: radius must be within (0, %d] km", models.ErrBadRequest, MaxSearchRadiusKm)
	}

	q.BloodType = strings.ToUpper(strings.TrimSpace(q.BloodType))
	if q.BloodType != "" {
		if _, ok := donorsFor[q.BloodType]; !ok {
			return fmt.Errorf("%w: unknown blood type %q", models.ErrBadRequest, q.BloodType)
		}
	}
	return nil
}
