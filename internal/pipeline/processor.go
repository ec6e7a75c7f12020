// Package pipeline runs the per-tile classification and vectorization
// pipeline and accumulates polygons per source image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/paulmach/orb"

	"github.com/ironsheep/raster2vec/internal/classify"
	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/mask"
	"github.com/ironsheep/raster2vec/internal/polygonize"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

// TileSource loads tile pixels by tile name.
type TileSource interface {
	Open(ctx context.Context, tile string) (image.Image, error)
}

// Processor turns tiles into georeferenced polygons. It holds no mutable
// state and is safe for concurrent use.
type Processor struct {
	classifier classify.Classifier
	cfg        polygonize.Config
	crs        *georef.CRSTransform
	workers    int
	logger     *log.Logger
	verbose    bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig sets the extraction parameters.
func WithConfig(cfg polygonize.Config) Option {
	return func(p *Processor) { p.cfg = cfg }
}

// WithCRS projects output polygons with c after the affine transform.
func WithCRS(c *georef.CRSTransform) Option {
	return func(p *Processor) { p.crs = c }
}

// WithWorkers bounds the number of tiles processed at once.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithVerbose enables one log line per tile.
func WithVerbose(v bool) Option {
	return func(p *Processor) { p.verbose = v }
}

// NewProcessor creates a Processor around a loaded classifier.
func NewProcessor(c classify.Classifier, opts ...Option) (*Processor, error) {
	if c == nil {
		return nil, errors.New("classifier is required")
	}
	p := &Processor{
		classifier: c,
		cfg:        polygonize.DefaultConfig(),
		workers:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard, "", 0)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction config: %w", err)
	}
	return p, nil
}

// Config returns the extraction parameters in use.
func (p *Processor) Config() polygonize.Config {
	return p.cfg
}

// ProcessTile classifies one tile and returns its polygons in output
// coordinates. The tile's offset is looked up in offsets, the classifier
// output is binarized and vectorized, and every polygon is translated by
// the offset and transformed by t. An empty slice is a valid result.
func (p *Processor) ProcessTile(tile string, img image.Image, offsets *tiling.OffsetMap, t georef.Affine) ([]orb.Polygon, error) {
	offset, ok := offsets.Get(tile)
	if !ok {
		return nil, &MissingOffsetError{Tile: tile}
	}

	classes, err := p.classifier.Predict(img)
	if err != nil {
		return nil, &ClassifierError{Tile: tile, Err: err}
	}
	b := img.Bounds()
	if classes == nil || classes.Rows != b.Dy() || classes.Cols != b.Dx() {
		return nil, &ClassifierError{Tile: tile, Err: fmt.Errorf("prediction does not match tile size %dx%d", b.Dx(), b.Dy())}
	}
	field, err := mask.Binarize(classes)
	if err != nil {
		return nil, &ClassifierError{Tile: tile, Err: err}
	}
	if classes.ForegroundCount() == 0 {
		if p.verbose {
			p.logger.Printf("Tile %s at %v: no foreground", tile, offset)
		}
		return []orb.Polygon{}, nil
	}

	res, err := polygonize.Extract(field, p.cfg)
	if err != nil {
		return nil, err
	}

	polys, err := georef.ReprojectAll(res.Polygons, offset, t)
	if err != nil {
		return nil, fmt.Errorf("failed to reproject tile %s: %w", tile, err)
	}
	polys, err = p.crs.Polygons(polys)
	if err != nil {
		return nil, fmt.Errorf("failed to project tile %s: %w", tile, err)
	}

	if p.verbose {
		p.logger.Printf("Tile %s at %v: %d contours, %d polygons", tile, offset, res.Stats.Contours, len(polys))
	}
	return polys, nil
}

// ImageResult is the polygon collection of one source image.
type ImageResult struct {
	Source    string        `json:"source"`
	Polygons  []orb.Polygon `json:"-"`
	Tiles     int           `json:"tiles"`
	Succeeded int           `json:"succeeded"`
	Failures  []*TileError  `json:"failures"`
}

// Err joins all tile failures, or returns nil when every tile succeeded.
func (r *ImageResult) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ProcessImage processes every tile recorded in offsets.
func (p *Processor) ProcessImage(ctx context.Context, source string, offsets *tiling.OffsetMap, src TileSource, t georef.Affine) (*ImageResult, error) {
	return p.ProcessTiles(ctx, source, offsets.Names(), offsets, src, t)
}

// ProcessTiles processes the named tiles of one source image on a bounded
// worker pool. A failing tile is reported in the result and does not
// affect the others. Polygons are collected in the order of tiles.
//
// If ctx is cancelled the partial collection is discarded and ctx.Err()
// is returned.
func (p *Processor) ProcessTiles(ctx context.Context, source string, tiles []string, offsets *tiling.OffsetMap, src TileSource, t georef.Affine) (*ImageResult, error) {
	type slot struct {
		polys []orb.Polygon
		err   *TileError
	}
	slots := make([]slot, len(tiles))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

dispatch:
	for i, name := range tiles {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i].polys, slots[i].err = p.runTile(ctx, name, offsets, src, t)
		}(i, name)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &ImageResult{Source: source, Tiles: len(tiles), Polygons: []orb.Polygon{}}
	for _, s := range slots {
		if s.err != nil {
			res.Failures = append(res.Failures, s.err)
			p.logger.Printf("Tile failed: %v", s.err)
			continue
		}
		res.Succeeded++
		res.Polygons = append(res.Polygons, s.polys...)
	}

	p.logger.Printf("Processed %s: %d polygons from %d tiles, %d failed",
		source, len(res.Polygons), res.Tiles, len(res.Failures))
	return res, nil
}

func (p *Processor) runTile(ctx context.Context, name string, offsets *tiling.OffsetMap, src TileSource, t georef.Affine) (polys []orb.Polygon, terr *TileError) {
	defer func() {
		if r := recover(); r != nil {
			polys, terr = nil, &TileError{Tile: name, Kind: KindPanic, Err: fmt.Errorf("%v", r)}
		}
	}()

	if _, ok := offsets.Get(name); !ok {
		return nil, &TileError{Tile: name, Kind: KindMissingOffset, Err: &MissingOffsetError{Tile: name}}
	}

	img, err := src.Open(ctx, name)
	if err != nil {
		return nil, &TileError{Tile: name, Kind: KindTileLoad, Err: err}
	}

	polys, err = p.ProcessTile(name, img, offsets, t)
	if err != nil {
		return nil, &TileError{Tile: name, Kind: kindOf(err), Err: err}
	}
	return polys, nil
}

// ProcessBatch processes every source of an offset dictionary in
// dictionary order. transformFor supplies each source's affine transform;
// nil means identity for all sources.
func (p *Processor) ProcessBatch(ctx context.Context, dict *tiling.Dictionary, src TileSource, transformFor func(source string) georef.Affine) ([]*ImageResult, error) {
	results := make([]*ImageResult, 0, dict.Len())
	for _, source := range dict.Sources() {
		offsets, _ := dict.Get(source)

		t := georef.Identity()
		if transformFor != nil {
			t = transformFor(source)
		}

		res, err := p.ProcessImage(ctx, source, offsets, src, t)
		if err != nil {
			return results, fmt.Errorf("failed to process %s: %w", source, err)
		}
		results = append(results, res)
	}
	return results, nil
}
