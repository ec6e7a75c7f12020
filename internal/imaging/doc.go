// Package imaging provides raster I/O and pixel operations for the
// tiling pipeline.
//
// It decodes source rasters (PNG, JPEG, GIF, TIFF, WebP) through a shared
// ImageCache, crops fixed-size tiles with optional padding, encodes tiles
// as PNG or WebP, and renders debug overlays of the tile grid and
// extracted polygons.
//
// # Coordinate System
//
// All pixel coordinates are 0-based relative to the image origin:
//   - X: horizontal position (0 = leftmost column)
//   - Y: vertical position (0 = topmost row)
//   - Regions are half-open: Min is inclusive, Max is exclusive
//
// Images whose Bounds().Min is not (0,0), such as sub-images, are handled
// by translating regions to the image origin first.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and never modify their input images.
package imaging
