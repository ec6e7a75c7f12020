package polygonize

import (
	"errors"
	"fmt"
	"math"
)

// Config holds the tunable parameters of Extract.
type Config struct {
	// SimplificationTolerance is the distance tolerance of the final
	// topology-preserving simplification, in pixels.
	SimplificationTolerance float64 `json:"simplification_tolerance"`

	// MinPolygonPoints is the minimum number of exterior ring coordinates,
	// counting the closing coordinate, a union part must have to be kept.
	MinPolygonPoints int `json:"min_polygon_points"`

	// MinContourPoints is the minimum number of vertices a traced contour
	// must have to become a polygon.
	MinContourPoints int `json:"min_contour_points"`

	// JoinDistance is the buffer distance applied to each contour polygon
	// before the union. Nearby regions closer than twice this distance merge.
	JoinDistance float64 `json:"join_distance"`

	// ContourLevel is the iso-value at which contours are traced.
	ContourLevel float64 `json:"contour_level"`

	// MinArea is the minimum area, in square pixels, of a kept union part.
	MinArea float64 `json:"min_area"`

	// MitreLimit bounds the length of mitre joins produced by buffering.
	MitreLimit float64 `json:"mitre_limit"`

	// QuadSegments is the number of segments per quarter circle used when
	// the buffer needs to round a corner.
	QuadSegments int `json:"quad_segments"`

	// PadBorder surrounds the mask with one background cell before tracing.
	PadBorder bool `json:"pad_border"`
}

// DefaultConfig returns the default extraction parameters.
func DefaultConfig() Config {
	return Config{
		SimplificationTolerance: 1.0,
		MinPolygonPoints:        3,
		MinContourPoints:        3,
		JoinDistance:            1,
		ContourLevel:            0.5,
		MinArea:                 20.0,
		MitreLimit:              5.0,
		QuadSegments:            16,
	}
}

// Validate reports the first invalid parameter in c.
func (c Config) Validate() error {
	switch {
	case c.SimplificationTolerance < 0 || math.IsNaN(c.SimplificationTolerance):
		return fmt.Errorf("simplification_tolerance must be >= 0, got %v", c.SimplificationTolerance)
	case c.MinPolygonPoints < 3:
		return fmt.Errorf("min_polygon_points must be >= 3, got %d", c.MinPolygonPoints)
	case c.MinContourPoints < 2:
		return fmt.Errorf("min_contour_points must be >= 2, got %d", c.MinContourPoints)
	case c.JoinDistance < 0 || math.IsNaN(c.JoinDistance):
		return fmt.Errorf("join_distance must be >= 0, got %v", c.JoinDistance)
	case math.IsNaN(c.ContourLevel) || math.IsInf(c.ContourLevel, 0):
		return errors.New("contour_level must be finite")
	case c.MinArea < 0 || math.IsNaN(c.MinArea):
		return fmt.Errorf("min_area must be >= 0, got %v", c.MinArea)
	case c.MitreLimit <= 0:
		return fmt.Errorf("mitre_limit must be > 0, got %v", c.MitreLimit)
	case c.QuadSegments < 1:
		return fmt.Errorf("quad_segments must be >= 1, got %d", c.QuadSegments)
	}
	return nil
}

// Overrides replaces selected fields of a Config. Nil fields leave the
// base value untouched.
type Overrides struct {
	SimplificationTolerance *float64 `json:"simplification_tolerance,omitempty"`
	MinPolygonPoints        *int     `json:"min_polygon_points,omitempty"`
	MinContourPoints        *int     `json:"min_contour_points,omitempty"`
	JoinDistance            *float64 `json:"join_distance,omitempty"`
	ContourLevel            *float64 `json:"contour_level,omitempty"`
	MinArea                 *float64 `json:"min_area,omitempty"`
	PadBorder               *bool    `json:"pad_border,omitempty"`
}

// Apply returns a copy of c with every non-nil override applied.
func (c Config) Apply(o Overrides) Config {
	if o.SimplificationTolerance != nil {
		c.SimplificationTolerance = *o.SimplificationTolerance
	}
	if o.MinPolygonPoints != nil {
		c.MinPolygonPoints = *o.MinPolygonPoints
	}
	if o.MinContourPoints != nil {
		c.MinContourPoints = *o.MinContourPoints
	}
	if o.JoinDistance != nil {
		c.JoinDistance = *o.JoinDistance
	}
	if o.ContourLevel != nil {
		c.ContourLevel = *o.ContourLevel
	}
	if o.MinArea != nil {
		c.MinArea = *o.MinArea
	}
	if o.PadBorder != nil {
		c.PadBorder = *o.PadBorder
	}
	return c
}
