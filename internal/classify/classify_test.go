package classify

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/raster2vec/internal/mask"
)

// createFieldImage returns a grey image with a green square at
// [x0, x0+size) x [y0, y0+size).
func createFieldImage(t *testing.T, width, height, x0, y0, size int) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{128, 128, 128, 255}
			if x >= x0 && x < x0+size && y >= y0 && y < y0+size {
				c = color.NRGBA{40, 150, 40, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestVegetation_Predict(t *testing.T) {
	v := DefaultVegetation()
	v.BlurRadius = 0

	m, err := v.Predict(createFieldImage(t, 40, 30, 10, 5, 10))
	require.NoError(t, err)
	require.Equal(t, 30, m.Rows)
	require.Equal(t, 40, m.Cols)
	require.Equal(t, 100, m.ForegroundCount())
	require.Equal(t, 1, m.At(5, 10))
	require.Equal(t, 0, m.At(0, 0))
}

func TestVegetation_PredictWithBlur(t *testing.T) {
	m, err := DefaultVegetation().Predict(createFieldImage(t, 40, 40, 10, 10, 20))
	require.NoError(t, err)
	require.Equal(t, 1, m.At(20, 20))
	require.Equal(t, 0, m.At(0, 0))
}

func TestVegetation_RejectsNonGreen(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{200, 30, 30, 255})
	img.SetNRGBA(1, 0, color.NRGBA{30, 30, 200, 255})
	img.SetNRGBA(2, 0, color.NRGBA{5, 10, 5, 255})
	img.SetNRGBA(3, 0, color.NRGBA{0, 0, 0, 0})

	v := DefaultVegetation()
	v.BlurRadius = 0
	m, err := v.Predict(img)
	require.NoError(t, err)
	require.Equal(t, 0, m.ForegroundCount())
}

func TestVegetation_EmptyImage(t *testing.T) {
	_, err := DefaultVegetation().Predict(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestVegetation_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vegetation.json")
	v := DefaultVegetation()
	v.HueMin = 70
	require.NoError(t, v.Save(path))

	loaded, err := LoadVegetation(path)
	require.NoError(t, err)
	require.Equal(t, v, loaded)

	c, err := Load(path)
	require.NoError(t, err)
	require.IsType(t, &Vegetation{}, c)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"hue_min": 200, "hue_max": 100}`), 0644))
	_, err = Load(bad)
	require.Error(t, err)

	c, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	f := Func(func(image.Image) (*mask.ClassMap, error) { return nil, boom })

	_, err := f.Predict(nil)
	require.ErrorIs(t, err, boom)
}
