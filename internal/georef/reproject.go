package georef

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidGeometry is returned for polygons that cannot be reprojected:
// no rings, rings with fewer than four coordinates, unclosed rings or
// non-finite coordinates.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Reproject maps a tile-local polygon into output coordinates. Every vertex
// of every ring is translated by the tile offset and then transformed by t.
// The input polygon is not modified.
func Reproject(p orb.Polygon, offset image.Point, t Affine) (orb.Polygon, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
	}

	full := t.Compose(Translation(float64(offset.X), float64(offset.Y)))
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		if err := checkRing(ring); err != nil {
			return nil, fmt.Errorf("ring %d: %w", i, err)
		}
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			r[j] = full.ApplyPoint(pt)
		}
		out[i] = r
	}
	return out, nil
}

// ReprojectAll reprojects every polygon with the same offset and transform.
// It stops at the first invalid polygon.
func ReprojectAll(polys []orb.Polygon, offset image.Point, t Affine) ([]orb.Polygon, error) {
	out := make([]orb.Polygon, 0, len(polys))
	for i, p := range polys {
		rp, err := Reproject(p, offset, t)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		out = append(out, rp)
	}
	return out, nil
}

// ToPixels maps output polygons back into source image pixel coordinates
// by inverting t. It is the inverse of ReprojectAll with a zero offset.
func ToPixels(polys []orb.Polygon, t Affine) ([]orb.Polygon, error) {
	inv, err := t.Invert()
	if err != nil {
		return nil, err
	}
	return ReprojectAll(polys, image.Point{}, inv)
}

func checkRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring has %d coordinates", ErrInvalidGeometry, len(r))
	}
	if r[0] != r[len(r)-1] {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}
	for _, pt := range r {
		if !finite(pt[0]) || !finite(pt[1]) {
			return fmt.Errorf("%w: non-finite coordinate %v", ErrInvalidGeometry, pt)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
