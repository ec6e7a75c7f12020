package polygonize

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"
	"gonum.org/v1/gonum/mat"
)

// Stats counts what happened to geometry at each extraction stage.
type Stats struct {
	Contours         int `json:"contours"`
	ShortContours    int `json:"short_contours"`
	InvalidContours  int `json:"invalid_contours"`
	UnionParts       int `json:"union_parts"`
	FilteredParts    int `json:"filtered_parts"`
	DroppedSimplify  int `json:"dropped_after_simplify"`
	GeometryFailures int `json:"geometry_failures"`
}

// Result is the outcome of Extract.
type Result struct {
	Polygons []orb.Polygon `json:"-"`
	Count    int           `json:"count"`
	Stats    Stats         `json:"stats"`
}

// Extract converts a mask into simplified polygons in mask pixel space.
//
// The only error Extract returns is an invalid cfg. Geometry that fails
// validation or that GEOS cannot process is counted in Result.Stats and
// dropped. An empty result is a valid outcome.
func Extract(mask mat.Matrix, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction config: %w", err)
	}

	res := &Result{Polygons: []orb.Polygon{}}
	if mask == nil {
		return res, nil
	}

	field, shift := mask, 0.0
	if cfg.PadBorder {
		field, shift = padField(mask, cfg.ContourLevel-1), 1
	}

	contours := Contours(field, cfg.ContourLevel)
	res.Stats.Contours = len(contours)

	gctx := geos.NewContext()

	buffered := make([]*geos.Geom, 0, len(contours))
	for _, c := range contours {
		if len(c) < cfg.MinContourPoints {
			res.Stats.ShortContours++
			continue
		}
		var g *geos.Geom
		err := guard(func() {
			p := gctx.NewPolygon([][][]float64{closedCoords(c, shift)})
			if !p.IsValid() {
				return
			}
			g = p.BufferWithStyle(cfg.JoinDistance, cfg.QuadSegments,
				geos.BufCapStyleRound, geos.BufJoinStyleMitre, cfg.MitreLimit)
		})
		if err != nil || g == nil {
			res.Stats.InvalidContours++
			continue
		}
		buffered = append(buffered, g)
	}
	if len(buffered) == 0 {
		return res, nil
	}

	var parts []*geos.Geom
	err := guard(func() {
		union := gctx.NewCollection(geos.TypeIDGeometryCollection, buffered).UnaryUnion()
		parts = flatten(union, nil)
	})
	if err != nil {
		res.Stats.GeometryFailures++
		return res, nil
	}
	res.Stats.UnionParts = len(parts)

	for _, part := range parts {
		var out []orb.Polygon
		kept := false
		err := guard(func() {
			if len(part.ExteriorRing().CoordSeq().ToCoords()) < cfg.MinPolygonPoints ||
				part.Area() < cfg.MinArea {
				return
			}
			kept = true
			simplified := part.TopologyPreserveSimplify(cfg.SimplificationTolerance)
			if simplified.IsEmpty() || !simplified.IsValid() {
				return
			}
			for _, p := range flatten(simplified, nil) {
				if len(p.ExteriorRing().CoordSeq().ToCoords()) < cfg.MinPolygonPoints ||
					p.Area() < cfg.MinArea {
					continue
				}
				out = append(out, toPolygon(p))
			}
		})
		switch {
		case err != nil:
			res.Stats.GeometryFailures++
		case !kept:
			res.Stats.FilteredParts++
		case len(out) == 0:
			res.Stats.DroppedSimplify++
		default:
			res.Polygons = append(res.Polygons, out...)
		}
	}

	res.Count = len(res.Polygons)
	return res, nil
}

// guard runs op and converts a GEOS panic into an error.
func guard(op func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("geos: %v", r)
		}
	}()
	op()
	return nil
}

// closedCoords converts a contour into a closed GEOS coordinate ring,
// shifting every vertex by -shift on both axes.
func closedCoords(ls orb.LineString, shift float64) [][]float64 {
	coords := make([][]float64, 0, len(ls)+1)
	for _, p := range ls {
		coords = append(coords, []float64{p[0] - shift, p[1] - shift})
	}
	if len(ls) > 0 && ls[0] != ls[len(ls)-1] {
		coords = append(coords, []float64{coords[0][0], coords[0][1]})
	}
	return coords
}

// flatten collects the polygons of g, descending into multi-polygons and
// collections. Other geometry types are ignored.
func flatten(g *geos.Geom, acc []*geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return acc
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return append(acc, g)
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			acc = flatten(g.Geometry(i), acc)
		}
	}
	return acc
}

func toPolygon(g *geos.Geom) orb.Polygon {
	p := make(orb.Polygon, 0, 1+g.NumInteriorRings())
	p = append(p, toRing(g.ExteriorRing()))
	for i := 0; i < g.NumInteriorRings(); i++ {
		p = append(p, toRing(g.InteriorRing(i)))
	}
	return p
}

func toRing(g *geos.Geom) orb.Ring {
	coords := g.CoordSeq().ToCoords()
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		ring[i] = orb.Point{c[0], c[1]}
	}
	return ring
}

// padField returns a copy of m surrounded by one cell of value.
func padField(m mat.Matrix, value float64) *mat.Dense {
	rows, cols := m.Dims()
	padded := mat.NewDense(rows+2, cols+2, nil)
	for r := 0; r < rows+2; r++ {
		for c := 0; c < cols+2; c++ {
			if r == 0 || c == 0 || r == rows+1 || c == cols+1 {
				padded.Set(r, c, value)
				continue
			}
			padded.Set(r, c, m.At(r-1, c-1))
		}
	}
	return padded
}
