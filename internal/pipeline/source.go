package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/raster2vec/internal/imaging"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

// DirSource reads tiles from files in a directory. Every tile is decoded
// once per run, so nothing is cached.
type DirSource struct {
	Dir string
}

// NewDirSource returns a source reading from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Open decodes the named tile.
func (s *DirSource) Open(ctx context.Context, tile string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tile != filepath.Base(tile) {
		return nil, fmt.Errorf("invalid tile name %q", tile)
	}

	return imaging.Open(filepath.Join(s.Dir, tile))
}

// List returns the tile files of source present in the directory, sorted
// by name. Only PNG and WebP files named "<source>_..." are listed.
func (s *DirSource) List(source string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), source+"_") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".webp":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Offsets rebuilds the offset map of source from the tile file names in
// the directory, for tiles whose offsets file was lost. Files that belong
// to another source sharing the name prefix are skipped.
func (s *DirSource) Offsets(source string) (*tiling.OffsetMap, error) {
	names, err := s.List(source)
	if err != nil {
		return nil, err
	}

	type entry struct {
		name   string
		offset image.Point
	}
	var tiles []entry
	for _, name := range names {
		src, offset, err := tiling.ParseTileName(name)
		if err != nil || src != source {
			continue
		}
		tiles = append(tiles, entry{name, offset})
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles of %s in %s", source, s.Dir)
	}

	// tiler order: columns outer, rows inner
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i].offset, tiles[j].offset
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	offsets := tiling.NewOffsetMap()
	for _, e := range tiles {
		offsets.Set(e.name, e.offset)
	}
	return offsets, nil
}

// SelectSources returns the offsets to process: every source of the
// offsets file, only source when it is set, or the offsets of source
// rebuilt from the tile names when offsetsFile is empty.
func (s *DirSource) SelectSources(offsetsFile, source string) (*tiling.Dictionary, error) {
	if offsetsFile == "" {
		if source == "" {
			return nil, errors.New("an offsets file or a source is required")
		}
		offsets, err := s.Offsets(source)
		if err != nil {
			return nil, err
		}
		dict := tiling.NewDictionary()
		dict.Add(source, offsets)
		return dict, nil
	}

	dict, err := tiling.LoadDictionary(offsetsFile)
	if err != nil {
		return nil, err
	}
	if source == "" {
		return dict, nil
	}
	offsets, ok := dict.Get(source)
	if !ok {
		return nil, fmt.Errorf("source %s not found in %s", source, offsetsFile)
	}
	dict = tiling.NewDictionary()
	dict.Add(source, offsets)
	return dict, nil
}

// MapSource serves tiles held in memory.
type MapSource map[string]image.Image

// Open returns the named tile.
func (s MapSource) Open(ctx context.Context, tile string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := s[tile]
	if !ok {
		return nil, fmt.Errorf("tile %s not found", tile)
	}
	return img, nil
}
