package polygonize

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// fieldFrom builds a matrix from rows of values.
func fieldFrom(t *testing.T, rows [][]float64) *mat.Dense {
	t.Helper()
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for r, row := range rows {
		for c, v := range row {
			m.Set(r, c, v)
		}
	}
	return m
}

func TestContours_SinglePixel(t *testing.T) {
	field := fieldFrom(t, [][]float64{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})

	lines := Contours(field, 0.5)
	if len(lines) != 1 {
		t.Fatalf("got %d contours, want 1", len(lines))
	}
	ls := lines[0]
	if len(ls) != 5 {
		t.Fatalf("got %d vertices, want 5", len(ls))
	}
	if ls[0] != ls[len(ls)-1] {
		t.Errorf("contour around an interior pixel should be closed: %v", ls)
	}
	for _, p := range ls {
		for _, v := range []float64{p.X(), p.Y()} {
			if v != 0.5 && v != 1 && v != 1.5 {
				t.Errorf("unexpected vertex %v", p)
			}
		}
	}
}

func TestContours_Saddle(t *testing.T) {
	field := fieldFrom(t, [][]float64{
		{1, 0},
		{0, 1},
	})

	lines := Contours(field, 0.5)
	if len(lines) != 2 {
		t.Fatalf("diagonal corners should stay separate, got %d contours", len(lines))
	}
}

func TestContours_BorderIsOpen(t *testing.T) {
	field := fieldFrom(t, [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{1, 0, 0},
	})

	lines := Contours(field, 0.5)
	if len(lines) != 1 {
		t.Fatalf("got %d contours, want 1", len(lines))
	}
	ls := lines[0]
	if ls[0] == ls[len(ls)-1] {
		t.Errorf("contour reaching the border should be open: %v", ls)
	}
	for _, p := range ls {
		if p.X() != 0.5 {
			t.Errorf("vertex %v should lie on x=0.5", p)
		}
	}
}

func TestContours_Uniform(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"all background", 0},
		{"all foreground", 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := mat.NewDense(4, 4, nil)
			for r := 0; r < 4; r++ {
				for c := 0; c < 4; c++ {
					field.Set(r, c, tt.value)
				}
			}
			if lines := Contours(field, 0.5); len(lines) != 0 {
				t.Errorf("got %d contours, want 0", len(lines))
			}
		})
	}
}

func TestContours_TooSmall(t *testing.T) {
	field := mat.NewDense(1, 5, []float64{0, 1, 1, 1, 0})
	if lines := Contours(field, 0.5); len(lines) != 0 {
		t.Errorf("single-row field should have no cells, got %d contours", len(lines))
	}
}

func TestContours_Deterministic(t *testing.T) {
	field := fieldFrom(t, [][]float64{
		{0, 0, 0, 0, 0, 0},
		{0, 1, 0, 0, 1, 0},
		{0, 1, 1, 0, 1, 0},
		{0, 0, 0, 0, 1, 0},
		{0, 1, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0},
	})

	first := Contours(field, 0.5)
	for i := 0; i < 5; i++ {
		again := Contours(field, 0.5)
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d contours, want %d", i, len(again), len(first))
		}
		for j := range first {
			if !first[j].Equal(again[j]) {
				t.Fatalf("run %d: contour %d differs", i, j)
			}
		}
	}
	if len(first) != 3 {
		t.Errorf("got %d contours, want 3", len(first))
	}
}
