// Package server implements the MCP (Model Context Protocol) server for the
// raster vectorization pipeline.
//
// This package provides a JSON-RPC 2.0 server that exposes tiling,
// classification and polygon extraction through the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Raster Information:
//   - raster_info: Size, format and tile count of a source raster
//
// Tiling:
//   - raster_split: Write tiles and record their offsets
//
// Vectorization:
//   - mask_polygons: Polygons from a binary mask image
//   - tile_vectorize: Classify one tile and return its polygons
//   - image_vectorize: Classify all tiles of an offsets file and write
//     one polygon file per source image
//
// Inspection:
//   - raster_overlay: Tile grid and polygon outlines drawn on the raster
//   - mask_compare: Jaccard score of predicted against ground-truth masks
//
// # Classifier
//
// The classifier model named in the configuration is loaded once by New
// and shared by all tool calls.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Tiles that fail inside image_vectorize do not fail the call. They are
// listed under "failures" in the per-source summary.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg, log.New(os.Stderr, "", log.LstdFlags))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
