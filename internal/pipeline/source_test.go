package pipeline

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

func TestDirSource_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	sink, err := tiling.NewDirSink(dir, 0)
	require.NoError(t, err)
	tiler, err := tiling.New(sink, tiling.Options{Size: 50}, nil)
	require.NoError(t, err)

	offsets, err := tiler.Split(context.Background(), "field", createStrip(t, 100, 1000))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	src := NewDirSource(dir)
	names, err := src.List("field")
	require.NoError(t, err)
	require.Equal(t, []string{"field_0_0.png", "field_50_0.png"}, names)

	res, err := newTestProcessor(t, blockClassifier()).
		ProcessTiles(context.Background(), "field", names, offsets, src, georef.Identity())
	require.NoError(t, err)
	require.Len(t, res.Polygons, 2)
	require.Empty(t, res.Failures)
}

func TestDirSource_Offsets(t *testing.T) {
	dir := t.TempDir()
	sink, err := tiling.NewDirSink(dir, 0)
	require.NoError(t, err)
	tiler, err := tiling.New(sink, tiling.Options{Size: 50}, nil)
	require.NoError(t, err)

	want, err := tiler.Split(context.Background(), "field", createStrip(t, 150, 1000))
	require.NoError(t, err)
	_, err = tiler.Split(context.Background(), "field_b", createStrip(t, 50, 1000))
	require.NoError(t, err)

	src := NewDirSource(dir)
	got, err := src.Offsets("field")
	require.NoError(t, err)
	require.Equal(t, []string{"field_0_0.png", "field_50_0.png", "field_100_0.png"}, got.Names())
	require.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		w, _ := want.Get(name)
		g, _ := got.Get(name)
		require.Equal(t, w, g, name)
	}

	_, err = src.Offsets("absent")
	require.Error(t, err)
}

func TestDirSource_Errors(t *testing.T) {
	src := NewDirSource(t.TempDir())

	_, err := src.Open(context.Background(), "missing.png")
	require.Error(t, err)

	_, err = src.Open(context.Background(), "../escape.png")
	require.Error(t, err)

	_, err = NewDirSource(filepath.Join(t.TempDir(), "nope")).List("x")
	require.Error(t, err)
}

func TestMapSource(t *testing.T) {
	offsets := tiling.NewOffsetMap()
	offsets.Set("mem_0_0.png", image.Pt(0, 0))
	offsets.Set("mem_50_0.png", image.Pt(50, 0))
	src := MapSource{
		"mem_0_0.png":  createStrip(t, 50, 1000),
		"mem_50_0.png": createStrip(t, 50, 1000),
	}

	res, err := newTestProcessor(t, blockClassifier()).
		ProcessImage(context.Background(), "mem", offsets, src, georef.Identity())
	require.NoError(t, err)
	require.Len(t, res.Polygons, 2)

	_, err = src.Open(context.Background(), "mem_99_0.png")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Open(ctx, "mem_0_0.png")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDirSource_SelectSources(t *testing.T) {
	dir := t.TempDir()
	sink, err := tiling.NewDirSink(dir, 0)
	require.NoError(t, err)
	tiler, err := tiling.New(sink, tiling.Options{Size: 50}, nil)
	require.NoError(t, err)

	dict := tiling.NewDictionary()
	for _, source := range []string{"north", "south"} {
		offsets, err := tiler.Split(context.Background(), source, createStrip(t, 100, 1000))
		require.NoError(t, err)
		dict.Add(source, offsets)
	}
	offsetsFile := filepath.Join(t.TempDir(), "offsets.json")
	require.NoError(t, dict.Save(offsetsFile))

	src := NewDirSource(dir)

	all, err := src.SelectSources(offsetsFile, "")
	require.NoError(t, err)
	require.Equal(t, []string{"north", "south"}, all.Sources())

	one, err := src.SelectSources(offsetsFile, "south")
	require.NoError(t, err)
	require.Equal(t, []string{"south"}, one.Sources())

	found, err := src.SelectSources("", "north")
	require.NoError(t, err)
	require.Equal(t, 2, found.TileCount())

	_, err = src.SelectSources(offsetsFile, "east")
	require.Error(t, err)
	_, err = src.SelectSources("", "")
	require.Error(t, err)
}
