// Package render turns decoded pixel rasters into RGBA display rasters.
package render

import (
	"errors"
	"fmt"
	"image"
	"slices"
)

// DefaultOpacity is the overlay opacity a viewer starts with.
const DefaultOpacity = 0.5

// ErrDimensionMismatch matches *DimensionMismatchError via errors.Is.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionMismatchError reports base and overlay rasters of different sizes.
type DimensionMismatchError struct {
	Base    image.Point
	Overlay image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: base %dx%d, overlay %dx%d", e.Base.X, e.Base.Y, e.Overlay.X, e.Overlay.Y)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// DisplayRaster is a row-major RGBA buffer, 4 bytes per pixel.
type DisplayRaster struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewDisplayRaster returns an opaque black raster.
func NewDisplayRaster(width, height int) *DisplayRaster {
	d := &DisplayRaster{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
	for i := 3; i < len(d.Pix); i += 4 {
		d.Pix[i] = 255
	}
	return d
}

// Clone returns a deep copy of d.
func (d *DisplayRaster) Clone() *DisplayRaster {
	return &DisplayRaster{Width: d.Width, Height: d.Height, Pix: slices.Clone(d.Pix)}
}

// Size returns the raster dimensions as a point.
func (d *DisplayRaster) Size() image.Point { return image.Pt(d.Width, d.Height) }

// PixelAt returns the RGBA bytes at (x, y).
func (d *DisplayRaster) PixelAt(x, y int) [4]uint8 {
	i := (y*d.Width + x) * 4
	return [4]uint8{d.Pix[i], d.Pix[i+1], d.Pix[i+2], d.Pix[i+3]}
}

// Image wraps the raster as an *image.RGBA sharing its buffer.
func (d *DisplayRaster) Image() *image.RGBA {
	return &image.RGBA{Pix: d.Pix, Stride: d.Width * 4, Rect: image.Rect(0, 0, d.Width, d.Height)}
}

// FromImage copies any image into a DisplayRaster.
func FromImage(img image.Image) *DisplayRaster {
	b := img.Bounds()
	d := NewDisplayRaster(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			d.Pix[i], d.Pix[i+1], d.Pix[i+2], d.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(bl>>8), uint8(a>>8)
			i += 4
		}
	}
	return d
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
