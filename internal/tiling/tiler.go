// Package tiling splits source rasters into fixed-size tiles and keeps the
// bookkeeping that maps every tile back to its place in the source.
package tiling

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"strings"

	"github.com/ironsheep/raster2vec/internal/imaging"
)

// DefaultTileSize is the edge length of a tile in pixels.
const DefaultTileSize = 1600

// ErrInvalidSize is returned for non-positive tile sizes.
var ErrInvalidSize = errors.New("tile size must be positive")

// Policy decides the shape of tiles at the right and bottom edges.
type Policy int

const (
	// PolicyPad extends boundary tiles to the full tile size with black
	// pixels.
	PolicyPad Policy = iota
	// PolicyClip crops boundary tiles to the part of the source they cover.
	PolicyClip
)

// ParsePolicy accepts "pad" or "clip". An empty string selects PolicyPad.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "pad":
		return PolicyPad, nil
	case "clip", "crop":
		return PolicyClip, nil
	}
	return PolicyPad, fmt.Errorf("unknown boundary policy: %s", s)
}

func (p Policy) String() string {
	if p == PolicyClip {
		return "clip"
	}
	return "pad"
}

// Options configures a Tiler.
type Options struct {
	// Size is the tile edge length in pixels.
	Size int

	// SkipEmpty drops tiles whose pixels are all black. Only the colour
	// channels are tested: an opaque black tile is empty even though its
	// alpha is not zero.
	SkipEmpty bool

	// Policy selects padding or clipping of boundary tiles.
	Policy Policy

	// Format is the tile encoding, which also sets the tile name extension.
	Format imaging.Format

	// Quality is the WebP quality; zero selects lossless.
	Quality float32

	// ContinueOnError logs sink failures and skips the tile instead of
	// aborting the split. Skipped tiles are not recorded.
	ContinueOnError bool
}

// DefaultOptions returns padded PNG tiles of DefaultTileSize.
func DefaultOptions() Options {
	return Options{Size: DefaultTileSize, Policy: PolicyPad, Format: imaging.FormatPNG}
}

// Tile is one cropped block of a source image.
type Tile struct {
	// Name is the tile identifier, "<source>_<x>_<y>.<ext>".
	Name string

	// Source is the identifier of the source image.
	Source string

	// Offset is the top-left corner of the tile in source pixels.
	Offset image.Point

	// Bounds is the part of the source the tile covers, in source pixels.
	Bounds image.Rectangle

	// Image holds the tile pixels, with its origin at (0,0).
	Image *image.NRGBA
}

// Tiler splits images into tiles and hands them to a Sink.
type Tiler struct {
	sink   Sink
	opts   Options
	logger *log.Logger
}

// New creates a Tiler. A nil logger discards log output.
func New(sink Sink, opts Options, logger *log.Logger) (*Tiler, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, opts.Size)
	}
	if opts.Format == "" {
		opts.Format = imaging.FormatPNG
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Tiler{sink: sink, opts: opts, logger: logger}, nil
}

// Options returns the options the Tiler was built with.
func (t *Tiler) Options() Options {
	return t.opts
}

// Split tiles img, stores every kept tile in the sink and returns the
// offsets of the stored tiles in walk order.
func (t *Tiler) Split(ctx context.Context, source string, img image.Image) (*OffsetMap, error) {
	offsets := NewOffsetMap()
	stored, failed := 0, 0

	err := t.Each(ctx, source, img, func(tile Tile) error {
		if t.sink != nil {
			if err := t.sink.Put(ctx, tile); err != nil {
				if !t.opts.ContinueOnError {
					return fmt.Errorf("failed to store tile %s: %w", tile.Name, err)
				}
				t.logger.Printf("Skipping tile %s: %v", tile.Name, err)
				failed++
				return nil
			}
		}
		offsets.Set(tile.Name, tile.Offset)
		stored++
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Printf("Split %s into %d tiles (%d failed)", source, stored, failed)
	return offsets, nil
}

// Each walks the tile grid of img and calls fn for every tile that is not
// skipped as empty. The walk stops at the first error returned by fn or
// when ctx is cancelled.
func (t *Tiler) Each(ctx context.Context, source string, img image.Image, fn func(Tile) error) error {
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("image %s has no pixels", source)
	}

	pad := t.opts.Policy == PolicyPad
	for _, cell := range Grid(b.Dx(), b.Dy(), t.opts.Size) {
		if err := ctx.Err(); err != nil {
			return err
		}

		region := image.Rectangle{Min: cell.Min, Max: cell.Min.Add(image.Pt(t.opts.Size, t.opts.Size))}
		pixels, err := imaging.CropTile(img, region, t.opts.Size, pad)
		if err != nil {
			return fmt.Errorf("failed to crop tile at %v: %w", cell.Min, err)
		}
		if t.opts.SkipEmpty && imaging.IsBlank(pixels) {
			continue
		}

		tile := Tile{
			Name:   TileName(source, cell.Min, t.opts.Format),
			Source: source,
			Offset: cell.Min,
			Bounds: cell,
			Image:  pixels,
		}
		if err := fn(tile); err != nil {
			return err
		}
	}
	return nil
}

// Grid returns the source region covered by each tile of a width x height
// image, clipped to the image, in walk order: the outer loop steps along x
// and the inner loop along y. For a 100x100 image and size 50 the offsets
// are (0,0), (0,50), (50,0), (50,50).
func Grid(width, height, size int) []image.Rectangle {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil
	}

	bounds := image.Rect(0, 0, width, height)
	cells := make([]image.Rectangle, 0, ((width+size-1)/size)*((height+size-1)/size))
	for x := 0; x < width; x += size {
		for y := 0; y < height; y += size {
			cells = append(cells, image.Rect(x, y, x+size, y+size).Intersect(bounds))
		}
	}
	return cells
}

// TileName returns the identifier of the tile at offset in source.
func TileName(source string, offset image.Point, f imaging.Format) string {
	if f == "" {
		f = imaging.FormatPNG
	}
	return fmt.Sprintf("%s_%d_%d.%s", source, offset.X, offset.Y, f.Ext())
}

// ParseTileName recovers the source identifier and offset from a tile
// name produced by TileName.
func ParseTileName(name string) (string, image.Point, error) {
	base := name
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}

	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return "", image.Point{}, fmt.Errorf("tile name %q has no offset suffix", name)
	}

	var x, y int
	if _, err := fmt.Sscanf(parts[len(parts)-2]+" "+parts[len(parts)-1], "%d %d", &x, &y); err != nil {
		return "", image.Point{}, fmt.Errorf("tile name %q has no offset suffix: %w", name, err)
	}
	return strings.Join(parts[:len(parts)-2], "_"), image.Pt(x, y), nil
}
