package geo

import (
	"math"
	"sort"
)

const (
	// EarthRadiusKm is the mean radius used by HaversineKm.
	EarthRadiusKm = 6371.0
	// KmPerDegreeLat approximates the length of one degree of latitude.
	KmPerDegreeLat = 111.0

	sampleSteps = 10
	// minCosLat keeps the longitude span finite near the poles.
	minCosLat = 0.01
)

// PrecisionForRadius maps a search radius to a geohash precision. Both the
// 5-30 km and 1-5 km bands map to 6, matching data already indexed that way.
func PrecisionForRadius(radiusKm float64) int {
	switch {
	case radiusKm >= 100:
		return 3
	case radiusKm >= 30:
		return 4
	case radiusKm >= 5:
		return 6
	case radiusKm >= 1:
		return 6
	default:
		return 7
	}
}

// CellsInRadius returns the distinct cells, sorted, that cover the bounding box
// of a radius search. It samples a 10x10 grid over the box and always includes
// the center cell. The set may reach past the radius; callers re-filter with
// HaversineKm.
func CellsInRadius(centerLat, centerLng, radiusKm float64) []string {
	precision := PrecisionForRadius(radiusKm)
	seen := map[string]struct{}{
		Encode(centerLat, centerLng, precision): {},
	}

	if radiusKm > 0 {
		latDelta := radiusKm / KmPerDegreeLat
		cosLat := math.Cos(toRadians(centerLat))
		if cosLat < minCosLat {
			cosLat = minCosLat
		}
		lngDelta := radiusKm / (KmPerDegreeLat * cosLat)

		latMin, latMax := clampLat(centerLat-latDelta), clampLat(centerLat+latDelta)
		lngMin, lngMax := centerLng-lngDelta, centerLng+lngDelta

		latStep := (latMax - latMin) / (sampleSteps - 1)
		lngStep := (lngMax - lngMin) / (sampleSteps - 1)

		for i := 0; i < sampleSteps; i++ {
			lat := latMin + float64(i)*latStep
			for j := 0; j < sampleSteps; j++ {
				lng := wrapLng(lngMin + float64(j)*lngStep)
				seen[Encode(lat, lng, precision)] = struct{}{}
			}
		}
	}

	cells := make([]string, 0, len(seen))
	for c := range seen {
		cells = append(cells, c)
	}
	sort.Strings(cells)
	return cells
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// wrapLng folds a longitude into [-180, 180).
func wrapLng(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}
