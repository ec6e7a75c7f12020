// Package mask holds per-pixel classification output and turns it into the
// binary scalar field consumed by polygon extraction.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/segment"
	"gonum.org/v1/gonum/mat"
)

// Values of a binarized mask.
const (
	Background = 0
	Foreground = 255
)

// ErrEmptyMask is returned for masks with no cells.
var ErrEmptyMask = errors.New("mask has no cells")

// ClassMap is a row-major grid of integer class labels, one per pixel.
// Label 0 is background; every other label is foreground.
type ClassMap struct {
	Rows   int   `json:"rows"`
	Cols   int   `json:"cols"`
	Labels []int `json:"labels"`
}

// NewClassMap returns an all-background map of the given size.
func NewClassMap(rows, cols int) *ClassMap {
	return &ClassMap{Rows: rows, Cols: cols, Labels: make([]int, rows*cols)}
}

// At returns the label at row r, column c.
func (m *ClassMap) At(r, c int) int {
	return m.Labels[r*m.Cols+c]
}

// Set assigns a label at row r, column c.
func (m *ClassMap) Set(r, c, label int) {
	m.Labels[r*m.Cols+c] = label
}

// Validate checks that m has cells and that Labels matches its dimensions.
func (m *ClassMap) Validate() error {
	if m == nil || m.Rows <= 0 || m.Cols <= 0 {
		return ErrEmptyMask
	}
	if len(m.Labels) != m.Rows*m.Cols {
		return fmt.Errorf("mask has %d labels, want %d for %dx%d",
			len(m.Labels), m.Rows*m.Cols, m.Rows, m.Cols)
	}
	return nil
}

// ForegroundCount returns the number of non-background cells.
func (m *ClassMap) ForegroundCount() int {
	n := 0
	for _, l := range m.Labels {
		if l != 0 {
			n++
		}
	}
	return n
}

// Binarize maps label 0 to Background and any other label to Foreground.
func Binarize(m *ClassMap) (*mat.Dense, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data := make([]float64, len(m.Labels))
	for i, l := range m.Labels {
		if l != 0 {
			data[i] = Foreground
		}
	}
	return mat.NewDense(m.Rows, m.Cols, data), nil
}

// FromImage reads a mask image: pixels whose luminance is at least level
// get label 1, others label 0. Fully transparent pixels are background.
func FromImage(img image.Image, level uint8) *ClassMap {
	b := img.Bounds()
	gray := segment.Threshold(img, level)
	gb := gray.Bounds()

	m := NewClassMap(b.Dy(), b.Dx())
	for y := 0; y < m.Rows; y++ {
		for x := 0; x < m.Cols; x++ {
			if _, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA(); a == 0 {
				continue
			}
			if gray.GrayAt(gb.Min.X+x, gb.Min.Y+y).Y == 0xFF {
				m.Set(y, x, 1)
			}
		}
	}
	return m
}

// ToImage renders a scalar field as a grayscale image: cells above zero
// are white.
func ToImage(field mat.Matrix) *image.Gray {
	rows, cols := field.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if field.At(r, c) > 0 {
				img.SetGray(c, r, color.Gray{Y: 0xFF})
			}
		}
	}
	return img
}

// Jaccard returns the intersection over union of the foreground cells of
// pred and truth. Two masks with no foreground score 1.
func Jaccard(pred, truth *ClassMap) (float64, error) {
	if err := pred.Validate(); err != nil {
		return 0, fmt.Errorf("prediction: %w", err)
	}
	if err := truth.Validate(); err != nil {
		return 0, fmt.Errorf("ground truth: %w", err)
	}
	if pred.Rows != truth.Rows || pred.Cols != truth.Cols {
		return 0, fmt.Errorf("mask size mismatch: %dx%d vs %dx%d",
			pred.Rows, pred.Cols, truth.Rows, truth.Cols)
	}

	var inter, union int
	for i := range pred.Labels {
		p, t := pred.Labels[i] != 0, truth.Labels[i] != 0
		if p && t {
			inter++
		}
		if p || t {
			union++
		}
	}
	if union == 0 {
		return 1, nil
	}
	return float64(inter) / float64(union), nil
}
