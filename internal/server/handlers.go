package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/ironsheep/raster2vec/internal/export"
	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/imaging"
	"github.com/ironsheep/raster2vec/internal/mask"
	"github.com/ironsheep/raster2vec/internal/pipeline"
	"github.com/ironsheep/raster2vec/internal/polygonize"
	"github.com/ironsheep/raster2vec/internal/tiling"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "raster_split", "image_vectorize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if err != nil {
		s.logger.Printf("Tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Raster Information
	case "raster_info":
		return s.handleRasterInfo(args)

	// Tiling
	case "raster_split":
		return s.handleRasterSplit(ctx, args)

	// Vectorization
	case "mask_polygons":
		return s.handleMaskPolygons(args)
	case "tile_vectorize":
		return s.handleTileVectorize(args)
	case "image_vectorize":
		return s.handleImageVectorize(ctx, args)

	// Inspection
	case "raster_overlay":
		return s.handleRasterOverlay(ctx, args)
	case "mask_compare":
		return s.handleMaskCompare(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments. Empty arguments decode to the zero
// value.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// transformOr returns t, or the configured transform when t is nil.
func (s *Server) transformOr(t *georef.Affine) georef.Affine {
	if t != nil {
		return *t
	}
	return s.transform
}

// === Raster Information Handlers ===

type rasterInfoArgs struct {
	Path     string `json:"path"`
	TileSize int    `json:"tile_size"`
}

type rasterInfoResult struct {
	*imaging.RasterInfo
	WorldFile    string         `json:"world_file,omitempty"`
	Transform    *georef.Affine `json:"transform,omitempty"`
	GeoTransform *[6]float64    `json:"geotransform,omitempty"`
}

func (s *Server) handleRasterInfo(args json.RawMessage) (interface{}, error) {
	var a rasterInfoArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TileSize == 0 {
		a.TileSize = s.cfg.Tiling.Size
	}
	info, err := imaging.LoadRasterInfo(s.cache, a.Path, a.TileSize)
	if err != nil {
		return nil, err
	}

	res := &rasterInfoResult{RasterInfo: info}
	wld := georef.WorldFilePath(a.Path)
	if _, statErr := os.Stat(wld); statErr == nil {
		t, err := georef.LoadWorldFile(wld)
		if err != nil {
			return nil, err
		}
		gt := t.GDAL()
		res.WorldFile, res.Transform, res.GeoTransform = wld, &t, &gt
	}
	return res, nil
}

// === Tiling Handlers ===

type rasterSplitArgs struct {
	Path        string `json:"path"`
	OutputDir   string `json:"output_dir"`
	TileSize    int    `json:"tile_size"`
	SkipEmpty   *bool  `json:"skip_empty"`
	Policy      string `json:"policy"`
	Format      string `json:"format"`
	OffsetsFile string `json:"offsets_file"`
}

type rasterSplitResult struct {
	Source      string            `json:"source"`
	OutputDir   string            `json:"output_dir"`
	Tiles       int               `json:"tiles"`
	Offsets     *tiling.OffsetMap `json:"offsets"`
	OffsetsFile string            `json:"offsets_file,omitempty"`
}

func (s *Server) handleRasterSplit(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rasterSplitArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	opts, err := s.cfg.TilingOptions()
	if err != nil {
		return nil, err
	}
	if a.TileSize != 0 {
		opts.Size = a.TileSize
	}
	if a.SkipEmpty != nil {
		opts.SkipEmpty = *a.SkipEmpty
	}
	if a.Policy != "" {
		if opts.Policy, err = tiling.ParsePolicy(a.Policy); err != nil {
			return nil, err
		}
	}
	if a.Format != "" {
		if opts.Format, err = imaging.ParseFormat(a.Format); err != nil {
			return nil, err
		}
	}
	if a.OutputDir == "" {
		a.OutputDir = s.cfg.Tiling.TileDir
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	defer s.cache.Evict(a.Path)

	sink, err := tiling.NewDirSink(a.OutputDir, opts.Quality)
	if err != nil {
		return nil, err
	}
	tiler, err := tiling.New(sink, opts, s.logger)
	if err != nil {
		return nil, err
	}

	source := imaging.SourceName(a.Path)
	offsets, err := tiler.Split(ctx, source, img)
	if err != nil {
		return nil, err
	}

	if a.OffsetsFile != "" {
		dict := tiling.NewDictionary()
		if _, statErr := os.Stat(a.OffsetsFile); statErr == nil {
			if dict, err = tiling.LoadDictionary(a.OffsetsFile); err != nil {
				return nil, err
			}
		}
		dict.Add(source, offsets)
		if err := dict.Save(a.OffsetsFile); err != nil {
			return nil, err
		}
	}

	return &rasterSplitResult{
		Source:      source,
		OutputDir:   a.OutputDir,
		Tiles:       offsets.Len(),
		Offsets:     offsets,
		OffsetsFile: a.OffsetsFile,
	}, nil
}

// === Vectorization Handlers ===

type maskPolygonsArgs struct {
	Path      string               `json:"path"`
	Level     *int                 `json:"level"`
	X         int                  `json:"x"`
	Y         int                  `json:"y"`
	Transform *georef.Affine       `json:"transform"`
	Extract   polygonize.Overrides `json:"extract"`
	Format    string               `json:"format"`
	MaskOut   string               `json:"mask_out"`
}

type polygonsResult struct {
	Count   int               `json:"count"`
	Stats   *polygonize.Stats `json:"stats,omitempty"`
	GeoJSON interface{}       `json:"geojson,omitempty"`
	WKT     []string          `json:"wkt,omitempty"`
	MaskOut string            `json:"mask_out,omitempty"`
}

func encodePolygons(source, format string, polys []orb.Polygon) (*polygonsResult, error) {
	res := &polygonsResult{Count: len(polys)}
	switch format {
	case "", "geojson":
		res.GeoJSON = export.FeatureCollection(source, polys)
	case "wkt":
		res.WKT = make([]string, len(polys))
		for i, p := range polys {
			res.WKT[i] = wkt.MarshalString(p)
		}
	default:
		return nil, fmt.Errorf("unsupported geometry format: %s", format)
	}
	return res, nil
}

func (s *Server) handleMaskPolygons(args json.RawMessage) (interface{}, error) {
	var a maskPolygonsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	level := 128
	if a.Level != nil {
		level = *a.Level
	}
	if level < 0 || level > 255 {
		return nil, fmt.Errorf("level must be between 0 and 255")
	}

	img, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	field, err := mask.Binarize(mask.FromImage(img, uint8(level)))
	if err != nil {
		return nil, err
	}
	if a.MaskOut != "" {
		if err := imaging.Save(a.MaskOut, mask.ToImage(field), imaging.FormatPNG, 0); err != nil {
			return nil, err
		}
	}

	extracted, err := polygonize.Extract(field, s.cfg.Extract.Apply(a.Extract))
	if err != nil {
		return nil, err
	}
	polys, err := georef.ReprojectAll(extracted.Polygons, image.Pt(a.X, a.Y), s.transformOr(a.Transform))
	if err != nil {
		return nil, err
	}

	res, err := encodePolygons(imaging.SourceName(a.Path), a.Format, polys)
	if err != nil {
		return nil, err
	}
	res.Stats = &extracted.Stats
	res.MaskOut = a.MaskOut
	return res, nil
}

type tileVectorizeArgs struct {
	Path        string         `json:"path"`
	OffsetsFile string         `json:"offsets_file"`
	Transform   *georef.Affine `json:"transform"`
}

func (s *Server) handleTileVectorize(args json.RawMessage) (interface{}, error) {
	var a tileVectorizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	dict, err := tiling.LoadDictionary(a.OffsetsFile)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(a.Path)
	source, _, err := tiling.ParseTileName(name)
	if err != nil {
		return nil, err
	}
	offsets, _ := dict.Get(source)

	img, err := imaging.Open(a.Path)
	if err != nil {
		return nil, err
	}
	p, err := s.processor(true)
	if err != nil {
		return nil, err
	}
	polys, err := p.ProcessTile(name, img, offsets, s.transformOr(a.Transform))
	if err != nil {
		return nil, err
	}
	return encodePolygons(source, "geojson", polys)
}

type imageVectorizeArgs struct {
	OffsetsFile string         `json:"offsets_file"`
	TilesDir    string         `json:"tiles_dir"`
	Source      string         `json:"source"`
	OutputDir   string         `json:"output_dir"`
	Format      string         `json:"format"`
	WorldDir    string         `json:"world_dir"`
	GCPFile     string         `json:"gcp_file"`
	Transform   *georef.Affine `json:"transform"`
}

type sourceSummary struct {
	Source        string                `json:"source"`
	Tiles         int                   `json:"tiles"`
	Succeeded     int                   `json:"succeeded"`
	Polygons      int                   `json:"polygons"`
	Output        string                `json:"output"`
	Georeferenced bool                  `json:"georeferenced"`
	Failures      []*pipeline.TileError `json:"failures,omitempty"`
}

func (s *Server) handleImageVectorize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageVectorizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TilesDir == "" {
		a.TilesDir = s.cfg.Tiling.TileDir
	}
	if a.OutputDir == "" {
		a.OutputDir = s.cfg.Output.Dir
	}
	if a.Format == "" {
		a.Format = s.cfg.Output.Format
	}
	format, err := export.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}

	tiles := pipeline.NewDirSource(a.TilesDir)
	dict, err := tiles.SelectSources(a.OffsetsFile, a.Source)
	if err != nil {
		return nil, err
	}

	base := s.transformOr(a.Transform)
	if a.GCPFile != "" {
		var rms float64
		if base, rms, err = georef.LoadGCPTransform(a.GCPFile); err != nil {
			return nil, err
		}
		s.logger.Printf("Fitted transform %v from %s, RMS %.4f", base, a.GCPFile, rms)
	}

	transforms := make(map[string]georef.Affine, dict.Len())
	for _, source := range dict.Sources() {
		t := base
		if a.WorldDir != "" {
			wt, ok, err := georef.FindWorldFile(a.WorldDir, source)
			if err != nil {
				return nil, err
			}
			if ok {
				t = wt
			}
		}
		transforms[source] = t
	}

	p, err := s.processor(true)
	if err != nil {
		return nil, err
	}
	results, err := p.ProcessBatch(ctx, dict, tiles,
		func(source string) georef.Affine { return transforms[source] })
	if err != nil {
		return nil, err
	}

	summaries := make([]sourceSummary, 0, len(results))
	for _, res := range results {
		out, err := export.WriteFile(a.OutputDir, res.Source, format, res.Polygons, s.crs.PRJ())
		if err != nil {
			return nil, err
		}
		s.logger.Printf("Wrote %d polygons for %s to %s", len(res.Polygons), res.Source, out)
		summaries = append(summaries, sourceSummary{
			Source:        res.Source,
			Tiles:         res.Tiles,
			Succeeded:     res.Succeeded,
			Polygons:      len(res.Polygons),
			Output:        out,
			Georeferenced: !transforms[res.Source].IsIdentity() || s.crs != nil,
			Failures:      res.Failures,
		})
	}
	return map[string]interface{}{"sources": summaries}, nil
}

// === Inspection Handlers ===

type rasterOverlayArgs struct {
	Path         string         `json:"path"`
	TileSize     int            `json:"tile_size"`
	ShowOffsets  bool           `json:"show_offsets"`
	Vectorize    bool           `json:"vectorize"`
	PolygonsFile string         `json:"polygons_file"`
	Transform    *georef.Affine `json:"transform"`
	GridColor    string         `json:"grid_color"`
	PolygonColor string         `json:"polygon_color"`
}

func (s *Server) handleRasterOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rasterOverlayArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TileSize == 0 {
		a.TileSize = s.cfg.Tiling.Size
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var polys []orb.Polygon
	if a.Vectorize {
		opts := tiling.DefaultOptions()
		opts.Size = a.TileSize
		sink := tiling.NewMemorySink()
		tiler, err := tiling.New(sink, opts, s.logger)
		if err != nil {
			return nil, err
		}
		source := imaging.SourceName(a.Path)
		offsets, err := tiler.Split(ctx, source, img)
		if err != nil {
			return nil, err
		}
		p, err := s.processor(false)
		if err != nil {
			return nil, err
		}
		res, err := p.ProcessImage(ctx, source, offsets, sink, georef.Identity())
		if err != nil {
			return nil, err
		}
		polys = res.Polygons
	}

	if a.PolygonsFile != "" {
		world, err := export.ReadGeoJSON(a.PolygonsFile)
		if err != nil {
			return nil, err
		}
		pixels, err := georef.ToPixels(world, s.transformOr(a.Transform))
		if err != nil {
			return nil, err
		}
		polys = append(polys, pixels...)
	}

	return imaging.Overlay(img, polys, imaging.OverlayOptions{
		TileSize:     a.TileSize,
		ShowOffsets:  a.ShowOffsets,
		GridColor:    a.GridColor,
		PolygonColor: a.PolygonColor,
	})
}

type maskCompareArgs struct {
	Predicted string `json:"predicted"`
	Truth     string `json:"truth"`
	Level     *int   `json:"level"`
}

func (s *Server) handleMaskCompare(args json.RawMessage) (interface{}, error) {
	var a maskCompareArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	level := 128
	if a.Level != nil {
		level = *a.Level
	}
	if level < 0 || level > 255 {
		return nil, fmt.Errorf("level must be between 0 and 255")
	}

	info, err := os.Stat(a.Predicted)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	if info.IsDir() {
		return mask.CompareDirs(a.Predicted, a.Truth, uint8(level))
	}

	j, err := mask.CompareFiles(a.Predicted, a.Truth, uint8(level))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"jaccard": j}, nil
}
