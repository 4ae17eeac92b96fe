package render

import (
	"image"
	"math"

	"github.com/jpfielding/dcmview/pkg/dicom"
)

// Composite normalizes base and overlay and blends them at opacity.
func Composite(base, overlay *dicom.PixelRaster, opacity float64) (*DisplayRaster, error) {
	if base.Rows != overlay.Rows || base.Columns != overlay.Columns {
		return nil, &DimensionMismatchError{
			Base:    image.Pt(base.Columns, base.Rows),
			Overlay: image.Pt(overlay.Columns, overlay.Rows),
		}
	}
	return Blend(Normalize(base), Normalize(overlay), opacity)
}

// Blend mixes two display rasters per channel as base*(1-opacity) + overlay*opacity,
// rounded to the nearest integer. Opacity is clamped to [0, 1]; alpha is 255.
func Blend(base, overlay *DisplayRaster, opacity float64) (*DisplayRaster, error) {
	if base.Width != overlay.Width || base.Height != overlay.Height {
		return nil, &DimensionMismatchError{Base: base.Size(), Overlay: overlay.Size()}
	}
	o := ClampOpacity(opacity)
	out := &DisplayRaster{Width: base.Width, Height: base.Height, Pix: make([]uint8, len(base.Pix))}
	for i := 0; i < len(base.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(base.Pix[i+c])*(1-o) + float64(overlay.Pix[i+c])*o
			out.Pix[i+c] = clamp8(math.Round(v))
		}
		out.Pix[i+3] = 255
	}
	return out, nil
}

// ClampOpacity limits opacity to [0, 1]; NaN becomes 0.
func ClampOpacity(opacity float64) float64 {
	switch {
	case math.IsNaN(opacity), opacity < 0:
		return 0
	case opacity > 1:
		return 1
	}
	return opacity
}

// Heatmap normalizes r and colours it with the jet colour map, low values blue
// and high values red. Only the first sample of each pixel is used.
func Heatmap(r *dicom.PixelRaster) *DisplayRaster {
	gray := Normalize(r)
	out := NewDisplayRaster(gray.Width, gray.Height)
	for i := 0; i < len(gray.Pix); i += 4 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = jet(gray.Pix[i])
	}
	return out
}

func jet(v uint8) (r, g, b uint8) {
	x := float64(v) / 255
	ch := func(offset float64) uint8 {
		return clamp8(math.Round((1.5 - math.Abs(4*x-offset)) * 255))
	}
	return ch(3), ch(2), ch(1)
}
