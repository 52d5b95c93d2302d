package geo_test

import (
	"testing"

	"github.com/BradenHooton/donorguard/internal/geo"
	"github.com/stretchr/testify/assert"
)

func TestPrecisionForRadius_Bands(t *testing.T) {
	tests := []struct {
		radiusKm float64
		want     int
	}{
		{500, 3}, {100, 3}, {99.9, 4}, {30, 4}, {29.9, 6}, {5, 6},
		{4.9, 6}, {1, 6}, {0.99, 7}, {0.1, 7}, {0, 7},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, geo.PrecisionForRadius(tt.radiusKm), "radius %v", tt.radiusKm)
	}
}

func TestPrecisionForRadius_NonIncreasing(t *testing.T) {
	prev := geo.PrecisionForRadius(0)
	for r := 0.0; r <= 1000; r += 0.25 {
		p := geo.PrecisionForRadius(r)
		assert.LessOrEqual(t, p, prev, "radius %v", r)
		prev = p
	}
}

func TestCellsInRadius_ContainsCenterCell(t *testing.T) {
	points := [][2]float64{
		{12.9716, 77.5946}, {0, 0}, {-33.8688, 151.2093}, {89.5, 10}, {-89.5, -10}, {10, 179.999},
	}
	radii := []float64{0, 0.5, 1, 3, 5, 12, 30, 75, 100, 250}

	for _, p := range points {
		for _, r := range radii {
			cells := geo.CellsInRadius(p[0], p[1], r)
			center := geo.Encode(p[0], p[1], geo.PrecisionForRadius(r))
			assert.Contains(t, cells, center, "point %v radius %v", p, r)
		}
	}
}

func TestCellsInRadius_UniformPrecisionAndUnique(t *testing.T) {
	cells := geo.CellsInRadius(28.6139, 77.2090, 10)
	assert.NotEmpty(t, cells)

	seen := map[string]bool{}
	for _, c := range cells {
		assert.Len(t, c, geo.PrecisionForRadius(10))
		assert.False(t, seen[c], "duplicate cell %s", c)
		seen[c] = true
	}
}

func TestCellsInRadius_CoversBoxCorners(t *testing.T) {
	lat, lng, r := 40.7128, -74.0060, 75.0
	cells := geo.CellsInRadius(lat, lng, r)
	precision := geo.PrecisionForRadius(r)

	// At 75 km the sample step is smaller than a precision-4 cell, so every
	// point inside the box lands in a returned cell.
	for _, p := range [][2]float64{
		{lat + 50/geo.KmPerDegreeLat, lng},
		{lat - 50/geo.KmPerDegreeLat, lng},
		{lat, lng + 0.8},
		{lat + 0.6, lng - 0.8},
	} {
		assert.Contains(t, cells, geo.Encode(p[0], p[1], precision), "point %v", p)
	}
}

func TestCellsInRadius_ZeroRadius(t *testing.T) {
	cells := geo.CellsInRadius(51.5, -0.12, 0)
	assert.Equal(t, []string{geo.Encode(51.5, -0.12, 7)}, cells)
}

func TestHaversineKm_SamePoint(t *testing.T) {
	assert.Equal(t, 0.0, geo.HaversineKm(12.34, 56.78, 12.34, 56.78))
}

func TestHaversineKm_KnownCityPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
	}{
		{"london-paris", 51.5074, -0.1278, 48.8566, 2.3522, 343.5},
		{"new york-london", 40.7128, -74.0060, 51.5074, -0.1278, 5570},
		{"sydney-santiago", -33.8688, 151.2093, -33.4489, -70.6693, 11340},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InEpsilon(t, tt.wantKm, got, 0.01)
		})
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := geo.HaversineKm(19.0760, 72.8777, 28.6139, 77.2090)
	b := geo.HaversineKm(28.6139, 77.2090, 19.0760, 72.8777)
	assert.InDelta(t, a, b, 1e-9)
}
