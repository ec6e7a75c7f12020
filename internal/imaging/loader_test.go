package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/tiff"
)

// newTestRaster creates an in-memory NRGBA image filled with c.
func newTestRaster(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// writeTestPNG writes a filled PNG into a temp dir and returns its path.
func writeTestPNG(t *testing.T, name string, width, height int, c color.Color) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, newTestRaster(width, height, c)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "scene.png", 100, 80, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img1.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x80", b.Dx(), b.Dy())
	}

	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestImageCache_LoadTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ortho.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := tiff.Encode(f, newTestRaster(30, 20, color.RGBA{0, 128, 0, 255}), nil); err != nil {
		t.Fatalf("failed to encode tiff: %v", err)
	}
	f.Close()

	img, err := NewImageCache().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("unexpected dimensions: got %dx%d, want 30x20", b.Dx(), b.Dy())
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	cache := NewImageCache()
	if _, err := cache.Load("/nonexistent/path/to/image.png"); err == nil {
		t.Error("Load should fail for non-existent file")
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := cache.Load(bad); err == nil {
		t.Error("Load should fail for invalid image data")
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	a := writeTestPNG(t, "a.png", 10, 10, color.White)
	b := writeTestPNG(t, "b.png", 10, 10, color.Black)

	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	cache.Evict(a)
	cache.Evict("/never/loaded")
	if cache.Len() != 1 {
		t.Errorf("after Evict Len = %d, want 1", cache.Len())
	}

	cache.Evict(b)
	if cache.Len() != 0 {
		t.Errorf("after evicting both Len = %d, want 0", cache.Len())
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "shared.png", 50, 50, color.Gray{128})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load failed: %v", err)
	}
}

func TestSourceName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/scene.tif", "scene"},
		{"ortho_2024.png", "ortho_2024"},
		{"dir/no_ext", "no_ext"},
	}
	for _, tt := range tests {
		if got := SourceName(tt.path); got != tt.want {
			t.Errorf("SourceName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoadRasterInfo(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "field.png", 100, 130, color.White)

	info, err := LoadRasterInfo(cache, path, 50)
	if err != nil {
		t.Fatalf("LoadRasterInfo failed: %v", err)
	}
	if info.Width != 100 || info.Height != 130 {
		t.Errorf("dimensions: got %dx%d, want 100x130", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format = %s, want png", info.Format)
	}
	if info.Source != "field" {
		t.Errorf("Source = %s, want field", info.Source)
	}
	if info.TileCount != 6 {
		t.Errorf("TileCount = %d, want 6", info.TileCount)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
}
