package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingOffset matches every *MissingOffsetError with errors.Is.
var ErrMissingOffset = errors.New("missing tile offset")

// MissingOffsetError reports a tile with no entry in its offset map. It
// points at a bookkeeping fault between tiling and processing.
type MissingOffsetError struct {
	Tile string
}

func (e *MissingOffsetError) Error() string {
	return fmt.Sprintf("no offset recorded for tile %s", e.Tile)
}

// Is reports whether target is ErrMissingOffset.
func (e *MissingOffsetError) Is(target error) bool {
	return target == ErrMissingOffset
}

// ClassifierError wraps a failed or malformed classifier prediction.
type ClassifierError struct {
	Tile string
	Err  error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier failed on tile %s: %v", e.Tile, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// Failure kinds reported in TileError.Kind.
const (
	KindMissingOffset = "missing_offset"
	KindClassifier    = "classifier"
	KindTileLoad      = "tile_load"
	KindGeometry      = "geometry"
	KindPanic         = "panic"
)

// TileError records why one tile produced no polygons.
type TileError struct {
	Tile string
	Kind string
	Err  error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %s (%s): %v", e.Tile, e.Kind, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// MarshalJSON encodes the failure as {"tile", "kind", "error"}.
func (e *TileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tile  string `json:"tile"`
		Kind  string `json:"kind"`
		Error string `json:"error"`
	}{e.Tile, e.Kind, e.Err.Error()})
}

// kindOf classifies an error returned while processing a tile.
func kindOf(err error) string {
	var ce *ClassifierError
	switch {
	case errors.Is(err, ErrMissingOffset):
		return KindMissingOffset
	case errors.As(err, &ce):
		return KindClassifier
	default:
		return KindGeometry
	}
}
