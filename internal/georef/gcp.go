package georef

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
)

// ControlPoint pairs a source image pixel with its known map coordinate.
type ControlPoint struct {
	Pixel orb.Point `json:"pixel"`
	World orb.Point `json:"world"`
}

// FitControlPoints fits an affine transform to at least three control
// points and returns it with the RMS residual in map units.
func FitControlPoints(cps []ControlPoint) (Affine, float64, error) {
	pixel := make([]orb.Point, len(cps))
	world := make([]orb.Point, len(cps))
	for i, cp := range cps {
		pixel[i], world[i] = cp.Pixel, cp.World
	}

	t, err := FitAffine(pixel, world)
	if err != nil {
		return Affine{}, 0, err
	}
	return t, Residual(t, cps), nil
}

// Residual returns the RMS distance between the transformed pixels of cps
// and their map coordinates.
func Residual(t Affine, cps []ControlPoint) float64 {
	if len(cps) == 0 {
		return 0
	}
	var sum float64
	for _, cp := range cps {
		p := t.ApplyPoint(cp.Pixel)
		dx, dy := p[0]-cp.World[0], p[1]-cp.World[1]
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(cps)))
}

// LoadControlPoints reads a JSON array of
// {"pixel": [x, y], "world": [x, y]} objects.
func LoadControlPoints(path string) ([]ControlPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read control points: %w", err)
	}
	var cps []ControlPoint
	if err := json.Unmarshal(data, &cps); err != nil {
		return nil, fmt.Errorf("failed to parse control points: %w", err)
	}
	return cps, nil
}

// LoadGCPTransform fits the transform described by the control point file
// at path.
func LoadGCPTransform(path string) (Affine, float64, error) {
	cps, err := LoadControlPoints(path)
	if err != nil {
		return Affine{}, 0, err
	}
	t, rms, err := FitControlPoints(cps)
	if err != nil {
		return Affine{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return t, rms, nil
}
