// Package classify defines the per-tile classifier capability and ships a
// rule-based vegetation classifier.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/anthonynsimon/bild/blur"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/raster2vec/internal/mask"
)

// Classifier labels every pixel of a tile. Implementations must be safe for
// concurrent use, since tiles of one image are classified in parallel.
type Classifier interface {
	Predict(img image.Image) (*mask.ClassMap, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(img image.Image) (*mask.ClassMap, error)

// Predict calls f.
func (f Func) Predict(img image.Image) (*mask.ClassMap, error) {
	return f(img)
}

// ErrEmptyImage is returned when asked to classify an image with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Vegetation labels pixels whose HSV colour falls inside a green band as
// class 1 and everything else as class 0. Its parameters are the model
// artifact and persist as JSON.
type Vegetation struct {
	// HueMin and HueMax bound the accepted hue in degrees.
	HueMin float64 `json:"hue_min"`
	HueMax float64 `json:"hue_max"`

	// MinSaturation and MinValue reject grey and dark pixels. Both are in [0,1].
	MinSaturation float64 `json:"min_saturation"`
	MinValue      float64 `json:"min_value"`

	// BlurRadius applies a Gaussian blur before classifying when positive,
	// which suppresses single-pixel noise in the mask.
	BlurRadius float64 `json:"blur_radius"`
}

// DefaultVegetation returns parameters tuned for RGB orthophotos.
func DefaultVegetation() *Vegetation {
	return &Vegetation{
		HueMin:        60,
		HueMax:        170,
		MinSaturation: 0.15,
		MinValue:      0.1,
		BlurRadius:    1.0,
	}
}

// Validate checks parameter ranges.
func (v *Vegetation) Validate() error {
	switch {
	case v.HueMin < 0 || v.HueMax > 360 || v.HueMin > v.HueMax:
		return fmt.Errorf("invalid hue range [%v, %v]", v.HueMin, v.HueMax)
	case v.MinSaturation < 0 || v.MinSaturation > 1:
		return fmt.Errorf("min_saturation must be in [0,1], got %v", v.MinSaturation)
	case v.MinValue < 0 || v.MinValue > 1:
		return fmt.Errorf("min_value must be in [0,1], got %v", v.MinValue)
	case v.BlurRadius < 0:
		return fmt.Errorf("blur_radius must be >= 0, got %v", v.BlurRadius)
	}
	return nil
}

// Predict classifies img. The returned map has one label per pixel with
// rows along y.
func (v *Vegetation) Predict(img image.Image) (*mask.ClassMap, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	src := img
	if v.BlurRadius > 0 {
		src = blur.Gaussian(img, v.BlurRadius)
	}

	b := src.Bounds()
	m := mask.NewClassMap(b.Dy(), b.Dx())
	for y := 0; y < m.Rows; y++ {
		for x := 0; x < m.Cols; x++ {
			c, ok := colorful.MakeColor(src.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				continue
			}
			h, s, val := c.Hsv()
			if h >= v.HueMin && h <= v.HueMax && s >= v.MinSaturation && val >= v.MinValue {
				m.Set(y, x, 1)
			}
		}
	}
	return m, nil
}

// LoadVegetation reads vegetation parameters from a JSON file.
func LoadVegetation(path string) (*Vegetation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	v := DefaultVegetation()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return v, nil
}

// Save writes the parameters to path as JSON.
func (v *Vegetation) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Load returns the classifier stored at path, or the default vegetation
// classifier when path is empty. It is meant to run once per batch.
func Load(path string) (Classifier, error) {
	if path == "" {
		return DefaultVegetation(), nil
	}
	return LoadVegetation(path)
}
