package polygonize

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/mat"
)

// createTestMask returns a rows x cols mask with the given blocks set to 255.
// Each block is {row, col, height, width}.
func createTestMask(t *testing.T, rows, cols int, blocks ...[4]int) *mat.Dense {
	t.Helper()
	m := mat.NewDense(rows, cols, nil)
	for _, b := range blocks {
		for r := b[0]; r < b[0]+b[2]; r++ {
			for c := b[1]; c < b[1]+b[3]; c++ {
				m.Set(r, c, 255)
			}
		}
	}
	return m
}

func TestExtract_SingleBlock(t *testing.T) {
	mask := createTestMask(t, 100, 100, [4]int{20, 30, 20, 30})

	res, err := Extract(mask, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Count != 1 || len(res.Polygons) != 1 {
		t.Fatalf("got %d polygons, want 1", len(res.Polygons))
	}

	p := res.Polygons[0]
	bound := p.Bound()
	if bound.Min.X() < 27 || bound.Min.X() > 30 {
		t.Errorf("min x = %v, want about 28", bound.Min.X())
	}
	if bound.Max.X() < 59 || bound.Max.X() > 62 {
		t.Errorf("max x = %v, want about 61", bound.Max.X())
	}
	if bound.Min.Y() < 17 || bound.Min.Y() > 20 {
		t.Errorf("min y = %v, want about 18", bound.Min.Y())
	}
	if bound.Max.Y() < 39 || bound.Max.Y() > 42 {
		t.Errorf("max y = %v, want about 41", bound.Max.Y())
	}
	if area := planar.Area(p); area < 600 {
		t.Errorf("area = %v, want > 600", area)
	}
	ring := p[0]
	if ring[0] != ring[len(ring)-1] {
		t.Error("exterior ring should be closed")
	}
}

func TestExtract_EmptyMask(t *testing.T) {
	res, err := Extract(mat.NewDense(50, 50, nil), DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 0 {
		t.Errorf("got %d polygons, want 0", len(res.Polygons))
	}
	if res.Polygons == nil {
		t.Error("Polygons should be an empty slice, not nil")
	}
}

func TestExtract_NilMask(t *testing.T) {
	res, err := Extract(nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("got %d polygons, want 0", res.Count)
	}
}

func TestExtract_SmallRegionFiltered(t *testing.T) {
	mask := createTestMask(t, 20, 20, [4]int{10, 10, 1, 1})

	res, err := Extract(mask, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 0 {
		t.Errorf("got %d polygons, want 0", len(res.Polygons))
	}
	if res.Stats.FilteredParts != 1 {
		t.Errorf("FilteredParts = %d, want 1", res.Stats.FilteredParts)
	}
}

func TestExtract_Merging(t *testing.T) {
	tests := []struct {
		name   string
		blocks [][4]int
		want   int
	}{
		{
			name:   "far apart",
			blocks: [][4]int{{10, 10, 10, 10}, {10, 40, 10, 10}},
			want:   2,
		},
		{
			name:   "one pixel gap",
			blocks: [][4]int{{10, 10, 10, 10}, {10, 21, 10, 10}},
			want:   1,
		},
		{
			name:   "touching",
			blocks: [][4]int{{10, 10, 10, 10}, {10, 20, 10, 10}},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := createTestMask(t, 60, 60, tt.blocks...)
			res, err := Extract(mask, DefaultConfig())
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if len(res.Polygons) != tt.want {
				t.Errorf("got %d polygons, want %d", len(res.Polygons), tt.want)
			}
		})
	}
}

func TestExtract_HoleIsFilled(t *testing.T) {
	mask := createTestMask(t, 40, 40, [4]int{10, 10, 16, 16})
	for r := 16; r < 20; r++ {
		for c := 16; c < 20; c++ {
			mask.Set(r, c, 0)
		}
	}

	res, err := Extract(mask, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 1 {
		t.Fatalf("got %d polygons, want 1", len(res.Polygons))
	}
	if len(res.Polygons[0]) != 1 {
		t.Errorf("got %d rings, want the hole to be filled", len(res.Polygons[0]))
	}
}

func TestExtract_FullMask(t *testing.T) {
	full := createTestMask(t, 30, 30, [4]int{0, 0, 30, 30})

	res, err := Extract(full, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 0 {
		t.Errorf("without padding got %d polygons, want 0", len(res.Polygons))
	}

	cfg := DefaultConfig()
	cfg.PadBorder = true
	res, err = Extract(full, cfg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 1 {
		t.Fatalf("with padding got %d polygons, want 1", len(res.Polygons))
	}
	bound := res.Polygons[0].Bound()
	if bound.Min.X() > 0 || bound.Max.X() < 29 {
		t.Errorf("padded polygon should cover the mask, got bound %v", bound)
	}
}

func TestExtract_MinAreaOverride(t *testing.T) {
	mask := createTestMask(t, 100, 100, [4]int{20, 30, 20, 30})
	big := 100000.0
	cfg := DefaultConfig().Apply(Overrides{MinArea: &big})

	res, err := Extract(mask, cfg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Polygons) != 0 {
		t.Errorf("got %d polygons, want 0", len(res.Polygons))
	}
}

func TestExtract_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPolygonPoints = 1

	if _, err := Extract(mat.NewDense(4, 4, nil), cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	mask := createTestMask(t, 80, 80,
		[4]int{5, 5, 12, 20}, [4]int{30, 30, 15, 15}, [4]int{50, 10, 20, 8})

	first, err := Extract(mask, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := Extract(mask, DefaultConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(first.Polygons, second.Polygons) {
		t.Error("repeated extraction should produce identical polygons")
	}
}

func TestExtract_ThresholdsHold(t *testing.T) {
	mask := createTestMask(t, 120, 120,
		[4]int{2, 2, 3, 3}, [4]int{10, 10, 4, 6}, [4]int{30, 30, 25, 9},
		[4]int{70, 5, 2, 40}, [4]int{90, 90, 12, 12})
	for r := 60; r < 110; r += 7 {
		mask.Set(r, 60, 255)
		mask.Set(r, 61, 255)
	}

	cfg := DefaultConfig()
	res, err := Extract(mask, cfg)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for i, p := range res.Polygons {
		if n := len(p[0]); n < cfg.MinPolygonPoints {
			t.Errorf("polygon %d has %d exterior coordinates", i, n)
		}
		if a := planar.Area(p); a < cfg.MinArea {
			t.Errorf("polygon %d has area %v below %v", i, a, cfg.MinArea)
		}
	}
}
