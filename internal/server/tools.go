package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var transformProperty = map[string]interface{}{
	"type":        "array",
	"items":       map[string]interface{}{"type": "number"},
	"minItems":    6,
	"maxItems":    6,
	"description": "Affine pixel-to-map transform [a, b, c, d, e, f]. Defaults to the configured transform (identity unless set)",
}

var extractProperty = map[string]interface{}{
	"type":        "object",
	"description": "Optional overrides of the extraction parameters",
	"properties": map[string]interface{}{
		"simplification_tolerance": map[string]interface{}{"type": "number"},
		"min_polygon_points":       map[string]interface{}{"type": "integer"},
		"min_contour_points":       map[string]interface{}{"type": "integer"},
		"join_distance":            map[string]interface{}{"type": "number"},
		"contour_level":            map[string]interface{}{"type": "number"},
		"min_area":                 map[string]interface{}{"type": "number"},
		"pad_border":               map[string]interface{}{"type": "boolean"},
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Raster Information
		{
			Name:        "raster_info",
			Description: "Read a source raster (GeoTIFF, PNG, JPEG or WebP) and return its size, format and the number of tiles it splits into. A world file next to the raster is reported as its transform in rasterio and GDAL order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the raster file",
					},
					"tile_size": map[string]interface{}{
						"type":        "integer",
						"description": "Tile edge length in pixels. Defaults to the configured tile size",
					},
				},
				"required": []string{"path"},
			},
		},

		// Tiling
		{
			Name:        "raster_split",
			Description: "Split a source raster into fixed-size tiles named <source>_<x>_<y> and record each tile's offset. Optionally merges the offsets into an offsets JSON file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the raster file",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for the tile files. Defaults to the configured tile directory",
					},
					"tile_size": map[string]interface{}{
						"type":        "integer",
						"description": "Tile edge length in pixels",
					},
					"skip_empty": map[string]interface{}{
						"type":        "boolean",
						"description": "Skip tiles whose pixels are all black",
					},
					"policy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"pad", "clip"},
						"description": "Boundary tile policy",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"png", "webp"},
						"description": "Tile file format",
					},
					"offsets_file": map[string]interface{}{
						"type":        "string",
						"description": "Offsets JSON file to create or extend with this raster's tiles",
					},
				},
				"required": []string{"path"},
			},
		},

		// Vectorization
		{
			Name:        "mask_polygons",
			Description: "Extract simplified polygons from a binary mask image. White pixels are foreground. Returns GeoJSON or WKT.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the mask image",
					},
					"level": map[string]interface{}{
						"type":        "integer",
						"description": "Luminance at or above which a pixel is foreground. Default 128",
						"default":     128,
					},
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "Tile offset X added before the transform. Default 0",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Tile offset Y added before the transform. Default 0",
					},
					"transform": transformProperty,
					"extract":   extractProperty,
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"geojson", "wkt"},
						"description": "Geometry encoding of the result. Default geojson",
					},
					"mask_out": map[string]interface{}{
						"type":        "string",
						"description": "Write the binarized mask to this PNG path for inspection",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tile_vectorize",
			Description: "Classify a single tile and return its polygons in map coordinates. The tile offset comes from the offsets file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the tile file",
					},
					"offsets_file": map[string]interface{}{
						"type":        "string",
						"description": "Offsets JSON file written by raster_split. Required unless source is given",
					},
					"transform": transformProperty,
				},
				"required": []string{"path", "offsets_file"},
			},
		},
		{
			Name:        "image_vectorize",
			Description: "Classify every tile listed in an offsets file and write one polygon file per source image. Tiles that fail are reported and skipped. Without an offsets file the tiles of source are found by name in tiles_dir.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"offsets_file": map[string]interface{}{
						"type":        "string",
						"description": "Offsets JSON file written by raster_split",
					},
					"tiles_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory holding the tile files. Defaults to the configured tile directory",
					},
					"source": map[string]interface{}{
						"type":        "string",
						"description": "Only process this source image. Default: all sources in the offsets file",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for the polygon files. Defaults to the configured output directory",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"geojson", "wkt", "shapefile"},
						"description": "Output format. Defaults to the configured format",
					},
					"world_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory searched for <source>.wld/.tfw/.pgw/.jgw world files giving per-source transforms",
					},
					"gcp_file": map[string]interface{}{
						"type":        "string",
						"description": "JSON list of {\"pixel\": [x, y], \"world\": [x, y]} ground control points. The fitted transform replaces transform",
					},
					"transform": transformProperty,
				},
				"required": []string{},
			},
		},

		// Inspection
		{
			Name:        "raster_overlay",
			Description: "Render a source raster with the tile grid and, optionally, the polygons found by classifying it. Returns a base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the raster file",
					},
					"tile_size": map[string]interface{}{
						"type":        "integer",
						"description": "Grid spacing in pixels. Defaults to the configured tile size",
					},
					"show_offsets": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each tile with its x,y offset",
					},
					"vectorize": map[string]interface{}{
						"type":        "boolean",
						"description": "Classify the raster and draw the resulting polygons",
					},
					"polygons_file": map[string]interface{}{
						"type":        "string",
						"description": "GeoJSON written by image_vectorize. Its polygons are mapped back to pixels with the inverse of transform and drawn",
					},
					"transform": transformProperty,
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid color as #RRGGBB or #RRGGBBAA. Default #FF0000",
					},
					"polygon_color": map[string]interface{}{
						"type":        "string",
						"description": "Polygon outline color. Default #FFFF00",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "mask_compare",
			Description: "Score predicted masks against ground truth with the Jaccard index. Accepts two files or two directories of same-named masks.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"predicted": map[string]interface{}{
						"type":        "string",
						"description": "Predicted mask file or directory",
					},
					"truth": map[string]interface{}{
						"type":        "string",
						"description": "Ground-truth mask file or directory",
					},
					"level": map[string]interface{}{
						"type":        "integer",
						"description": "Luminance at or above which a pixel is foreground. Default 128",
						"default":     128,
					},
				},
				"required": []string{"predicted", "truth"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
