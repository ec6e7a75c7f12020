package georef

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Affine is a 2D affine transform from pixel to map coordinates.
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
//
// The coefficient order matches the rasterio/affine convention. The JSON
// form is the array [a, b, c, d, e, f].
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// ErrSingular is returned when an Affine has no inverse.
var ErrSingular = errors.New("affine transform is not invertible")

// Identity returns the identity transform (1, 0, 0, 0, 1, 0).
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Translation returns a pure translation by (tx, ty).
func Translation(tx, ty float64) Affine {
	return Affine{A: 1, C: tx, E: 1, F: ty}
}

// Scale returns a pure scaling transform.
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, E: sy}
}

// FromOrigin returns the north-up transform for a raster whose top-left
// corner sits at (west, north) with pixels of xsize by ysize map
// units. Rows grow southwards, so E is negative.
func FromOrigin(west, north, xsize, ysize float64) Affine {
	return Translation(west, north).Compose(Scale(xsize, -ysize))
}

// FromGDAL builds a transform from a GDAL geotransform
// (c, a, b, f, d, e).
func FromGDAL(c, a, b, f, d, e float64) Affine {
	return Affine{A: a, B: b, C: c, D: d, E: e, F: f}
}

// FromArray builds a transform from [a, b, c, d, e, f].
func FromArray(v [6]float64) Affine {
	return Affine{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}
}

// ParseTransform parses a transform given on the command line or in the
// environment. Three forms are accepted:
//
//	a,b,c,d,e,f                  rasterio coefficient order
//	gdal:c,a,b,f,d,e             GDAL geotransform order
//	origin:west,north,xres,yres  north-up raster with its top-left corner at (west, north)
func ParseTransform(s string) (Affine, error) {
	kind, list := "", s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		kind, list = strings.ToLower(strings.TrimSpace(s[:i])), s[i+1:]
	}

	parts := strings.Split(list, ",")
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Affine{}, fmt.Errorf("invalid transform value %q: %w", p, err)
		}
		v[i] = f
	}

	want := 6
	if kind == "origin" {
		want = 4
	}
	if len(v) != want {
		return Affine{}, fmt.Errorf("transform needs %d comma-separated values, got %d", want, len(v))
	}

	switch kind {
	case "":
		return FromArray([6]float64(v)), nil
	case "gdal":
		return FromGDAL(v[0], v[1], v[2], v[3], v[4], v[5]), nil
	case "origin":
		return FromOrigin(v[0], v[1], v[2], v[3]), nil
	}
	return Affine{}, fmt.Errorf("unknown transform form %q", kind)
}

// Array returns the coefficients as [a, b, c, d, e, f].
func (t Affine) Array() [6]float64 {
	return [6]float64{t.A, t.B, t.C, t.D, t.E, t.F}
}

// GDAL returns the coefficients in GDAL geotransform order.
func (t Affine) GDAL() [6]float64 {
	return [6]float64{t.C, t.A, t.B, t.F, t.D, t.E}
}

// Apply transforms a single coordinate pair.
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// ApplyPoint transforms an orb point.
func (t Affine) ApplyPoint(p orb.Point) orb.Point {
	x, y := t.Apply(p[0], p[1])
	return orb.Point{x, y}
}

// IsIdentity reports whether t is exactly the identity.
func (t Affine) IsIdentity() bool {
	return t == Identity()
}

// Compose returns the transform that applies other first and then t.
func (t Affine) Compose(other Affine) Affine {
	return Affine{
		A: t.A*other.A + t.B*other.D,
		B: t.A*other.B + t.B*other.E,
		C: t.A*other.C + t.B*other.F + t.C,
		D: t.D*other.A + t.E*other.D,
		E: t.D*other.B + t.E*other.E,
		F: t.D*other.C + t.E*other.F + t.F,
	}
}

// Matrix returns t as a 3x3 homogeneous matrix.
func (t Affine) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.A, t.B, t.C,
		t.D, t.E, t.F,
		0, 0, 1,
	})
}

// Invert returns the inverse transform, mapping map coordinates back to
// pixels.
func (t Affine) Invert() (Affine, error) {
	if det := t.A*t.E - t.B*t.D; math.Abs(det) < 1e-12 {
		return Affine{}, ErrSingular
	}

	var inv mat.Dense
	if err := inv.Inverse(t.Matrix()); err != nil {
		return Affine{}, fmt.Errorf("failed to invert transform: %w", err)
	}
	return Affine{
		A: inv.At(0, 0), B: inv.At(0, 1), C: inv.At(0, 2),
		D: inv.At(1, 0), E: inv.At(1, 1), F: inv.At(1, 2),
	}, nil
}

// FitAffine estimates the transform mapping pixel to world from at least
// three ground control point pairs using least squares.
func FitAffine(pixel, world []orb.Point) (Affine, error) {
	n := len(pixel)
	if n != len(world) {
		return Affine{}, fmt.Errorf("control point count mismatch: %d pixel, %d world", n, len(world))
	}
	if n < 3 {
		return Affine{}, fmt.Errorf("need at least 3 control points, got %d", n)
	}

	a := mat.NewDense(n*2, 6, nil)
	b := mat.NewVecDense(n*2, nil)
	for i := 0; i < n; i++ {
		x, y := pixel[i][0], pixel[i][1]

		a.Set(i*2, 0, x)
		a.Set(i*2, 1, y)
		a.Set(i*2, 2, 1)
		b.SetVec(i*2, world[i][0])

		a.Set(i*2+1, 3, x)
		a.Set(i*2+1, 4, y)
		a.Set(i*2+1, 5, 1)
		b.SetVec(i*2+1, world[i][1])
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return Affine{}, fmt.Errorf("failed to fit transform: %w", err)
	}

	return Affine{
		A: params.AtVec(0), B: params.AtVec(1), C: params.AtVec(2),
		D: params.AtVec(3), E: params.AtVec(4), F: params.AtVec(5),
	}, nil
}

// MarshalJSON encodes t as [a, b, c, d, e, f].
func (t Affine) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Array())
}

// UnmarshalJSON decodes a six-element coefficient array.
func (t *Affine) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode transform: %w", err)
	}
	if len(v) != 6 {
		return fmt.Errorf("transform needs 6 coefficients, got %d", len(v))
	}
	*t = FromArray([6]float64(v))
	return nil
}

func (t Affine) String() string {
	return fmt.Sprintf("Affine(%g, %g, %g, %g, %g, %g)", t.A, t.B, t.C, t.D, t.E, t.F)
}
