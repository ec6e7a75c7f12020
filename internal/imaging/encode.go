package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is a tile encoding.
type Format string

// Supported tile encodings.
const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat accepts "png" or "webp" in any case. An empty string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported tile format: %s", s)
}

// Ext returns the file extension for f without the leading dot.
func (f Format) Ext() string {
	return string(f)
}

// MimeType returns the MIME type of f.
func (f Format) MimeType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/png"
}

// Encode writes img to w. Quality applies to WebP only; zero or less
// selects lossless WebP.
func Encode(w io.Writer, img image.Image, f Format, quality float32) error {
	switch f {
	case FormatWebP:
		opts := &webp.Options{Lossless: quality <= 0, Quality: quality}
		if err := webp.Encode(w, img, opts); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatPNG, "":
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		return fmt.Errorf("unsupported tile format: %s", f)
	}
	return nil
}

// Save encodes img into a new file at path.
func Save(path string, img image.Image, f Format, quality float32) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(out, img, f, quality); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EncodeBase64 returns img as a base64 PNG for transport in JSON.
func EncodeBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatPNG, 0); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
