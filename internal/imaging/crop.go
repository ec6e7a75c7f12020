package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PadColor fills the part of a padded tile that lies outside the source.
var PadColor = color.NRGBA{0, 0, 0, 255}

// CropTile extracts region from img. Region is given in 0-based pixel
// coordinates relative to the image origin and may extend past the image.
//
// With pad set, the result is always size x size: the covered part of the
// source is pasted at the top-left and the rest is filled with PadColor.
// Without pad, the result is the region clipped to the image.
func CropTile(img image.Image, region image.Rectangle, size int, pad bool) (*image.NRGBA, error) {
	b := img.Bounds()
	src := region.Add(b.Min).Intersect(b)
	if src.Empty() {
		return nil, fmt.Errorf("tile region %v outside image bounds %v", region, b)
	}

	cropped := imaging.Crop(img, src)
	if !pad {
		return cropped, nil
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid tile size: %d", size)
	}
	if cropped.Bounds().Dx() == size && cropped.Bounds().Dy() == size {
		return cropped, nil
	}

	canvas := imaging.New(size, size, PadColor)
	return imaging.Paste(canvas, cropped, image.Pt(0, 0)), nil
}

// IsBlank reports whether every pixel of img has zero red, green and blue.
// Alpha is ignored, so opaque black padding counts as blank.
func IsBlank(img image.Image) bool {
	if n, ok := img.(*image.NRGBA); ok {
		b := n.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := n.Pix[n.PixOffset(b.Min.X, y):n.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				if row[i] != 0 || row[i+1] != 0 || row[i+2] != 0 {
					return false
				}
			}
		}
		return true
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != 0 || g != 0 || bl != 0 {
				return false
			}
		}
	}
	return true
}
