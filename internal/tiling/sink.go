package tiling

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironsheep/raster2vec/internal/imaging"
)

// Sink stores tiles produced by a Tiler.
type Sink interface {
	Put(ctx context.Context, tile Tile) error
}

// DirSink writes each tile as a file named after the tile into Dir. The
// encoding follows the tile name extension.
type DirSink struct {
	Dir     string
	Quality float32
}

// NewDirSink creates dir if needed and returns a sink writing into it.
func NewDirSink(dir string, quality float32) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tile directory: %w", err)
	}
	return &DirSink{Dir: dir, Quality: quality}, nil
}

// Put encodes the tile into Dir.
func (s *DirSink) Put(ctx context.Context, tile Tile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	format, err := imaging.ParseFormat(filepath.Ext(tile.Name))
	if err != nil {
		return err
	}
	return imaging.Save(filepath.Join(s.Dir, tile.Name), tile.Image, format, s.Quality)
}

// MemorySink keeps tiles in memory. It is safe for concurrent use.
type MemorySink struct {
	mu    sync.RWMutex
	names []string
	tiles map[string]Tile
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{tiles: make(map[string]Tile)}
}

// Put stores the tile under its name.
func (s *MemorySink) Put(_ context.Context, tile Tile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tiles[tile.Name]; !ok {
		s.names = append(s.names, tile.Name)
	}
	s.tiles[tile.Name] = tile
	return nil
}

// Tile returns a stored tile.
func (s *MemorySink) Tile(name string) (Tile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiles[name]
	return t, ok
}

// Open returns the pixels of a stored tile.
func (s *MemorySink) Open(_ context.Context, name string) (image.Image, error) {
	t, ok := s.Tile(name)
	if !ok {
		return nil, fmt.Errorf("tile %s not found", name)
	}
	return t.Image, nil
}

// Names returns tile names in insertion order.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Len returns the number of stored tiles.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}
