// Package geo implements geohash encoding, decoding and neighbor lookup, plus
// the radius helpers used to build donor search queries.
//
// Cell sizes by precision (approximate, at the equator):
//
//	1 → 5000 km    4 → 39 km     7 → 153 m    10 → 1.2 m
//	2 → 1250 km    5 → 4.9 km    8 → 38 m     11 → 15 cm
//	3 → 156 km     6 → 1.2 km    9 → 4.8 m    12 → 3.7 cm
package geo

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultPrecision balances ~1.2 km cells against query fan-out.
	DefaultPrecision = 6
	MinPrecision     = 1
	MaxPrecision     = 12

	// alphabet excludes a, i, l and o.
	alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"
)

// ErrInvalidCell is matched by errors.Is for every malformed cell error.
var ErrInvalidCell = errors.New("invalid geohash cell")

// InvalidCellError reports a malformed geohash string.
type InvalidCellError struct {
	Cell   string
	Reason string
}

func (e *InvalidCellError) Error() string {
	return fmt.Sprintf("invalid geohash cell %q: %s", e.Cell, e.Reason)
}

func (e *InvalidCellError) Is(target error) bool {
	return target == ErrInvalidCell
}

var alphabetIndex [256]int8

func init() {
	for i := range alphabetIndex {
		alphabetIndex[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		alphabetIndex[alphabet[i]] = int8(i)
	}
}

// Cell is a decoded geohash: the bounding box of the encoded region.
type Cell struct {
	Hash   string  `json:"hash"`
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LngMin float64 `json:"lng_min"`
	LngMax float64 `json:"lng_max"`
}

// Center returns the midpoint of the cell.
func (c Cell) Center() (lat, lng float64) {
	return (c.LatMin + c.LatMax) / 2, (c.LngMin + c.LngMax) / 2
}

// Contains reports whether the point lies in the cell. Lower bounds are
// inclusive and upper bounds exclusive, matching Encode's bisection.
func (c Cell) Contains(lat, lng float64) bool {
	return lat >= c.LatMin && lat < c.LatMax && lng >= c.LngMin && lng < c.LngMax
}

// Encode returns the geohash of the point with the given number of characters.
// Precision below MinPrecision selects DefaultPrecision; above MaxPrecision is
// clamped. Coordinates are not validated.
func Encode(lat, lng float64, precision int) string {
	if precision < MinPrecision {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)

	evenBit := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if evenBit {
			mid := (lngMin + lngMax) / 2
			if lng >= mid {
				ch = ch<<1 | 1
				lngMin = mid
			} else {
				ch <<= 1
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch = ch<<1 | 1
				latMin = mid
			} else {
				ch <<= 1
				latMax = mid
			}
		}
		evenBit = !evenBit

		bit++
		if bit == 5 {
			hash.WriteByte(alphabet[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// Decode returns the bounding box of a geohash cell.
func Decode(cell string) (Cell, error) {
	hash, err := normalize(cell)
	if err != nil {
		return Cell{}, err
	}

	c := Cell{Hash: hash, LatMin: -90, LatMax: 90, LngMin: -180, LngMax: 180}
	evenBit := true

	for i := 0; i < len(hash); i++ {
		idx := int(alphabetIndex[hash[i]])
		for n := 4; n >= 0; n-- {
			set := (idx>>n)&1 == 1
			if evenBit {
				mid := (c.LngMin + c.LngMax) / 2
				if set {
					c.LngMin = mid
				} else {
					c.LngMax = mid
				}
			} else {
				mid := (c.LatMin + c.LatMax) / 2
				if set {
					c.LatMin = mid
				} else {
					c.LatMax = mid
				}
			}
			evenBit = !evenBit
		}
	}

	return c, nil
}

// normalize lower-cases and validates a cell string.
func normalize(cell string) (string, error) {
	if cell == "" {
		return "", &InvalidCellError{Cell: cell, Reason: "empty"}
	}
	if len(cell) > MaxPrecision {
		return "", &InvalidCellError{Cell: cell, Reason: fmt.Sprintf("longer than %d characters", MaxPrecision)}
	}

	hash := strings.ToLower(cell)
	for i := 0; i < len(hash); i++ {
		if alphabetIndex[hash[i]] < 0 {
			return "", &InvalidCellError{Cell: cell, Reason: fmt.Sprintf("character %q not in alphabet", hash[i])}
		}
	}
	return hash, nil
}
