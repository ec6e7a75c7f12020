// Package export writes polygon collections as GeoJSON, WKT or ESRI
// Shapefile.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Format is an output polygon format.
type Format string

// Supported output formats.
const (
	FormatGeoJSON   Format = "geojson"
	FormatWKT       Format = "wkt"
	FormatShapefile Format = "shapefile"
)

// ParseFormat accepts "geojson", "wkt" or "shapefile" (also "shp").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "geojson", "json":
		return FormatGeoJSON, nil
	case "wkt":
		return FormatWKT, nil
	case "shapefile", "shp":
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// FileName returns the output file name for a source image.
func (f Format) FileName(source string) string {
	switch f {
	case FormatWKT:
		return source + ".wkt"
	case FormatShapefile:
		return source + "_shapefile.shp"
	}
	return source + ".geojson"
}

// FeatureCollection builds a GeoJSON collection with one feature per
// polygon. Each feature carries its index, its planar area and the source
// name. Exterior rings are counter-clockwise and holes clockwise.
func FeatureCollection(source string, polys []orb.Polygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range polys {
		f := geojson.NewFeature(orient(p, orb.CCW))
		f.Properties["id"] = i
		f.Properties["source"] = source
		f.Properties["area"] = planar.Area(p)
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON encodes the polygons of source as a FeatureCollection.
func WriteGeoJSON(w io.Writer, source string, polys []orb.Polygon) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(FeatureCollection(source, polys)); err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	return nil
}

// ReadGeoJSON reads the polygons of a FeatureCollection file such as one
// written by WriteGeoJSON. MultiPolygons are split into their members and
// other geometry types are skipped.
func ReadGeoJSON(path string) ([]orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	var polys []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		}
	}
	return polys, nil
}

// WriteWKT writes one WKT polygon per line.
func WriteWKT(w io.Writer, polys []orb.Polygon) error {
	bw := bufio.NewWriter(w)
	for _, p := range polys {
		if _, err := bw.WriteString(wkt.MarshalString(p) + "\n"); err != nil {
			return fmt.Errorf("failed to write wkt: %w", err)
		}
	}
	return bw.Flush()
}

// DBF numeric columns are right-justified and space padded.
const (
	idWidth       = 10
	areaWidth     = 24
	areaPrecision = 3
)

// WriteShapefile writes the polygons to a shapefile at path (with its .shx
// and .dbf siblings). Each record carries ID and AREA attributes. When prj
// is not empty it is written as the .prj projection file.
func WriteShapefile(path string, polys []orb.Polygon, prj string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.NumberField("ID", idWidth),
		shp.FloatField("AREA", areaWidth, areaPrecision),
	}); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	for i, p := range polys {
		shape := toShape(orient(p, orb.CW))
		row := int(w.Write(&shape))
		if err := w.WriteAttribute(row, 0, fmt.Sprintf("%*d", idWidth, i)); err != nil {
			return fmt.Errorf("failed to write ID of polygon %d: %w", i, err)
		}
		if err := w.WriteAttribute(row, 1, fmt.Sprintf("%*.*f", areaWidth, areaPrecision, planar.Area(p))); err != nil {
			return fmt.Errorf("failed to write AREA of polygon %d: %w", i, err)
		}
	}

	if prj != "" {
		prjPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
		if err := os.WriteFile(prjPath, []byte(prj), 0644); err != nil {
			return fmt.Errorf("failed to write projection file: %w", err)
		}
	}
	return nil
}

// WriteFile writes the polygons of source into dir using format and
// returns the path of the main output file.
func WriteFile(dir, source string, format Format, polys []orb.Polygon, prj string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, format.FileName(source))

	if format == FormatShapefile {
		return path, WriteShapefile(path, polys, prj)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if format == FormatWKT {
		err = WriteWKT(f, polys)
	} else {
		err = WriteGeoJSON(f, source, polys)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write %s: %w", path, cerr)
	}
	return path, err
}

// orient returns a copy of p whose exterior ring has the given orientation
// and whose holes have the opposite one.
func orient(p orb.Polygon, exterior orb.Orientation) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		want := exterior
		if i > 0 {
			want = -exterior
		}
		r := ring.Clone()
		if r.Orientation() != want {
			r.Reverse()
		}
		out[i] = r
	}
	return out
}

func toShape(p orb.Polygon) shp.Polygon {
	parts := make([][]shp.Point, len(p))
	for i, ring := range p {
		pts := make([]shp.Point, len(ring))
		for j, pt := range ring {
			pts[j] = shp.Point{X: pt[0], Y: pt[1]}
		}
		parts[i] = pts
	}
	return shp.Polygon(*shp.NewPolyLine(parts))
}
