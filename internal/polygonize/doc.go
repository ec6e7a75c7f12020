// Package polygonize converts binary masks into simplified polygons.
//
// A mask is any gonum mat.Matrix whose cells hold a scalar value per pixel,
// typically 0 for background and 255 for foreground. Extraction runs in
// pixel space: a vertex (x, y) has x along the columns and y along the rows,
// with (0,0) at the centre of the top-left pixel.
//
// # Pipeline
//
// Extract performs, in order:
//   - marching-squares iso-contours at Config.ContourLevel
//   - removal of contours shorter than Config.MinContourPoints
//   - construction and validity check of one polygon per contour
//   - buffering by Config.JoinDistance with mitre joins
//   - unary union of every buffered polygon
//   - removal of union parts with too few exterior points or too little area
//   - topology-preserving simplification
//   - removal of empty or invalid results, and of results that fell below
//     the point or area thresholds while simplifying
//
// Geometry operations are delegated to GEOS through github.com/twpayne/go-geos.
// Each Extract call owns its GEOS context, so concurrent calls never share
// geometry state.
//
// # Border Contours
//
// Regions touching the edge of the mask produce open contours. These are
// closed by joining the last vertex to the first, which may cut across the
// region. A mask whose every cell is foreground has no iso-line at all and
// yields no polygons. Setting Config.PadBorder surrounds the mask with one
// cell of background so every region produces a closed contour.
//
// # Holes
//
// Contours of holes are turned into polygons of their own, and the union
// then fills the hole. Polygons returned by Extract therefore rarely carry
// interior rings; they appear only when buffering closes a ring around a
// gap.
package polygonize
