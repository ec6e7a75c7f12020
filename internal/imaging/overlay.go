package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
)

// OverlayOptions controls Overlay rendering.
type OverlayOptions struct {
	// TileSize draws the tile grid when positive.
	TileSize int

	// ShowOffsets labels each tile with its "x,y" offset.
	ShowOffsets bool

	// GridColor is "#RRGGBB" or "#RRGGBBAA". Defaults to red.
	GridColor string

	// PolygonColor is "#RRGGBB" or "#RRGGBBAA". Defaults to yellow.
	PolygonColor string
}

// OverlayResult contains the rendered preview.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	TileSize    int    `json:"tile_size,omitempty"`
	Polygons    int    `json:"polygons"`
}

// Overlay draws the tile grid and polygon outlines on a copy of img.
// Polygons are in source-image pixel coordinates.
func Overlay(img image.Image, polygons []orb.Polygon, opts OverlayOptions) (*OverlayResult, error) {
	gridColor, err := parseHexColor(opts.GridColor)
	if err != nil {
		gridColor = color.NRGBA{255, 0, 0, 255}
	}
	polyColor, err := parseHexColor(opts.PolygonColor)
	if err != nil {
		polyColor = color.NRGBA{255, 255, 0, 255}
	}

	result := Render(img, polygons, opts.TileSize, opts.ShowOffsets, gridColor, polyColor)

	encoded, err := EncodeBase64(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       result.Bounds().Dx(),
		Height:      result.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    FormatPNG.MimeType(),
		TileSize:    opts.TileSize,
		Polygons:    len(polygons),
	}, nil
}

// Render draws the overlay and returns the raw image.
func Render(img image.Image, polygons []orb.Polygon, tileSize int, showOffsets bool, gridColor, polyColor color.NRGBA) *image.NRGBA {
	result := imaging.Clone(img)
	width := result.Bounds().Dx()
	height := result.Bounds().Dy()

	if tileSize > 0 {
		for x := tileSize; x < width; x += tileSize {
			for y := 0; y < height; y++ {
				result.SetNRGBA(x, y, gridColor)
			}
		}
		for y := tileSize; y < height; y += tileSize {
			for x := 0; x < width; x++ {
				result.SetNRGBA(x, y, gridColor)
			}
		}

		if showOffsets {
			labelColor := color.NRGBA{255, 255, 255, 255}
			bgColor := color.NRGBA{0, 0, 0, 180}
			for x := 0; x < width; x += tileSize {
				for y := 0; y < height; y += tileSize {
					drawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", x, y), labelColor, bgColor)
				}
			}
		}
	}

	for _, p := range polygons {
		for _, ring := range p {
			for i := 1; i < len(ring); i++ {
				drawLine(result, ring[i-1], ring[i], polyColor)
			}
		}
	}
	return result
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	alpha := uint8(255)
	switch len(hex) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %s: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// drawLine draws a one-pixel line with Bresenham's algorithm, clipped to
// the image.
func drawLine(img *image.NRGBA, from, to orb.Point, c color.NRGBA) {
	x0, y0 := int(from[0]+0.5), int(from[1]+0.5)
	x1, y1 := int(to[0]+0.5), int(to[1]+0.5)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	bounds := img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetNRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawLabel draws a small text label at the given position using a 3x5
// pixel digit font.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if p := image.Pt(x+dx, y+dy); p.In(bounds) {
				img.SetNRGBA(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if p := image.Pt(cx+col, y+row); p.In(bounds) {
					img.SetNRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
