// Package georef maps tile-local pixel geometry into georeferenced output
// coordinates.
//
// Reprojection is two steps: a translation by the tile's offset inside its
// source image, then the source image's Affine transform. An optional
// CRSTransform projects the result into another coordinate reference
// system.
package georef
