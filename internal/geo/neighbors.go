package geo

import (
	"fmt"
	"strings"
)

// Direction names one of the four cardinal neighbors of a cell.
type Direction int

const (
	Top Direction = iota
	Bottom
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Lookup tables indexed by [direction][len(hash)%2]. Index 0 is even length,
// where the last character refines 3 latitude and 2 longitude bits; index 1 is
// odd length, where it refines 3 longitude and 2 latitude bits.
var (
	neighborTable = [4][2]string{
		Top:    {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
		Bottom: {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
		Right:  {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		Left:   {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borderTable = [4][2]string{
		Top:    {"prxz", "bcfguvyz"},
		Bottom: {"028b", "0145hjnp"},
		Right:  {"bcfguvyz", "prxz"},
		Left:   {"0145hjnp", "028b"},
	}
)

// Adjacent returns the neighboring cell in the given direction at the same
// precision. It works on the string alone, so no precision is lost to a
// decode/encode round trip. Cells on the antimeridian wrap around.
func Adjacent(cell string, dir Direction) (string, error) {
	if dir < Top || dir > Right {
		return "", fmt.Errorf("adjacent %q: unknown %s", cell, dir)
	}
	hash, err := normalize(cell)
	if err != nil {
		return "", err
	}
	return adjacent(hash, dir), nil
}

// adjacent expects a normalized hash.
func adjacent(hash string, dir Direction) string {
	last := hash[len(hash)-1]
	parent := hash[:len(hash)-1]
	parity := len(hash) % 2

	if strings.IndexByte(borderTable[dir][parity], last) >= 0 && parent != "" {
		parent = adjacent(parent, dir)
	}

	idx := strings.IndexByte(neighborTable[dir][parity], last)
	return parent + string(alphabet[idx])
}

// Neighbors returns the 8 surrounding cells in compass order starting at the
// top: top, top-right, right, bottom-right, bottom, bottom-left, left, top-left.
func Neighbors(cell string) ([8]string, error) {
	hash, err := normalize(cell)
	if err != nil {
		return [8]string{}, err
	}

	top := adjacent(hash, Top)
	bottom := adjacent(hash, Bottom)
	right := adjacent(hash, Right)
	left := adjacent(hash, Left)

	return [8]string{
		top,
		adjacent(right, Top),
		right,
		adjacent(right, Bottom),
		bottom,
		adjacent(left, Bottom),
		left,
		adjacent(left, Top),
	}, nil
}
