package georef

import (
	"fmt"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
)

// CRSTransform projects coordinates between two coordinate reference
// systems given as proj4 strings. A nil *CRSTransform is the identity.
type CRSTransform struct {
	src, dst string
	fn       proj.Transformer
}

// NewCRSTransform parses both reference systems and prepares the
// transformation from src to dst. The transformation is tried once on the
// origin, since unknown projection names only fail when used.
func NewCRSTransform(src, dst string) (*CRSTransform, error) {
	from, err := proj.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source CRS: %w", err)
	}
	to, err := proj.Parse(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target CRS: %w", err)
	}
	fn, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("failed to create CRS transform: %w", err)
	}
	if _, _, err := fn(0, 0); err != nil {
		return nil, fmt.Errorf("failed to create CRS transform: %w", err)
	}
	return &CRSTransform{src: src, dst: dst, fn: fn}, nil
}

// Source returns the proj4 definition of the source CRS.
func (c *CRSTransform) Source() string { return c.src }

// Target returns the proj4 definition of the target CRS.
func (c *CRSTransform) Target() string { return c.dst }

// PRJ returns the target definition for a shapefile .prj, or "" for a nil
// transform. Only WKT targets are readable as ESRI projection files.
func (c *CRSTransform) PRJ() string {
	if c == nil {
		return ""
	}
	return c.dst
}

// Point projects a single point.
func (c *CRSTransform) Point(p orb.Point) (orb.Point, error) {
	if c == nil {
		return p, nil
	}
	x, y, err := c.fn(p[0], p[1])
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to project %v: %w", p, err)
	}
	return orb.Point{x, y}, nil
}

// Polygon projects every vertex of p into a new polygon.
func (c *CRSTransform) Polygon(p orb.Polygon) (orb.Polygon, error) {
	if c == nil {
		return p, nil
	}
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			q, err := c.Point(pt)
			if err != nil {
				return nil, err
			}
			r[j] = q
		}
		out[i] = r
	}
	return out, nil
}

// Polygons projects a slice of polygons.
func (c *CRSTransform) Polygons(polys []orb.Polygon) ([]orb.Polygon, error) {
	if c == nil {
		return polys, nil
	}
	out := make([]orb.Polygon, len(polys))
	for i, p := range polys {
		q, err := c.Polygon(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
