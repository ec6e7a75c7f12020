package georef

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseWorldFile reads an ESRI world file (.tfw, .pgw, .jgw, .wld).
//
// A world file lists A, D, B, E and the map coordinates of the centre of
// the top-left pixel. The returned transform maps pixel corners, so the
// origin is shifted by half a pixel.
func ParseWorldFile(r io.Reader) (Affine, error) {
	var v []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return Affine{}, fmt.Errorf("invalid world file line %q: %w", line, err)
		}
		v = append(v, f)
	}
	if err := scanner.Err(); err != nil {
		return Affine{}, fmt.Errorf("failed to read world file: %w", err)
	}
	if len(v) != 6 {
		return Affine{}, fmt.Errorf("world file needs 6 values, got %d", len(v))
	}

	a, d, b, e, cx, cy := v[0], v[1], v[2], v[3], v[4], v[5]
	return Affine{
		A: a, B: b, C: cx - a/2 - b/2,
		D: d, E: e, F: cy - d/2 - e/2,
	}, nil
}

// LoadWorldFile opens and parses the world file at path.
func LoadWorldFile(path string) (Affine, error) {
	f, err := os.Open(path)
	if err != nil {
		return Affine{}, fmt.Errorf("failed to open world file: %w", err)
	}
	defer f.Close()
	return ParseWorldFile(f)
}

// WorldFilePath returns the conventional world file name for a raster,
// e.g. "scene.tif" -> "scene.tfw".
func WorldFilePath(rasterPath string) string {
	dot := strings.LastIndex(rasterPath, ".")
	slash := strings.LastIndexAny(rasterPath, `/\`)
	if dot <= slash {
		return rasterPath + ".wld"
	}
	ext := rasterPath[dot+1:]
	if len(ext) >= 2 {
		ext = ext[:1] + ext[len(ext)-1:] + "w"
	} else {
		ext = "wld"
	}
	return rasterPath[:dot+1] + ext
}

// worldFileExts are tried in order by FindWorldFile.
var worldFileExts = []string{".wld", ".tfw", ".pgw", ".jgw"}

// FindWorldFile looks in dir for a world file named after source and
// parses the first one found. ok is false when none exists.
func FindWorldFile(dir, source string) (t Affine, ok bool, err error) {
	for _, ext := range worldFileExts {
		path := filepath.Join(dir, source+ext)
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		t, err = LoadWorldFile(path)
		return t, err == nil, err
	}
	return Affine{}, false, nil
}
