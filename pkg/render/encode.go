package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const dataURLPrefix = "data:image/png;base64,"

// PlaceholderText is drawn on rasters for files without a decodable preview.
const PlaceholderText = "PREVIEW UNAVAILABLE"

// EncodePNG writes the raster as a PNG.
func EncodePNG(w io.Writer, d *DisplayRaster) error {
	if err := png.Encode(w, d.Image()); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// DataURL returns the raster as a base64 PNG data URL.
func DataURL(d *DisplayRaster) (string, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, d); err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Thumbnail scales d so its longer side is at most maxSide, keeping the aspect
// ratio. Rasters already within bounds are returned unchanged.
func Thumbnail(d *DisplayRaster, maxSide int) *DisplayRaster {
	if maxSide <= 0 || (d.Width <= maxSide && d.Height <= maxSide) {
		return d
	}
	w, h := maxSide, maxSide
	if d.Width >= d.Height {
		h = max(1, d.Height*maxSide/d.Width)
	} else {
		w = max(1, d.Width*maxSide/d.Height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), d.Image(), image.Rect(0, 0, d.Width, d.Height), draw.Src, nil)
	return &DisplayRaster{Width: w, Height: h, Pix: dst.Pix}
}

// Placeholder returns a dark grey raster with PlaceholderText centred on it.
func Placeholder(width, height int) *DisplayRaster {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 40, G: 40, B: 40, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, PlaceholderText).Ceil()
	x := max(0, (width-textWidth)/2)
	y := (height + face.Ascent - face.Descent) / 2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(PlaceholderText)
	return &DisplayRaster{Width: width, Height: height, Pix: img.Pix}
}
