package render

import (
	"math"

	"github.com/jpfielding/dcmview/pkg/dicom"
)

// Normalize maps every sample linearly from the raster's [min, max] to [0, 255]
// with floor rounding. A flat raster maps to black. Grayscale is replicated to
// R, G and B; alpha is always 255.
func Normalize(r *dicom.PixelRaster) *DisplayRaster {
	lo, hi := r.MinMax()
	span := float64(int64(hi) - int64(lo))
	return toDisplay(r, func(v int32) uint8 {
		if span == 0 {
			return 0
		}
		return clamp8(math.Floor(float64(int64(v)-int64(lo)) / span * 255))
	})
}

// NormalizeWindow applies the modality rescale and a linear VOI window
// (PS3.3 C.11.2.1.2). A width below 1 falls back to Normalize.
func NormalizeWindow(r *dicom.PixelRaster, center, width float64) *DisplayRaster {
	if width < 1 || math.IsNaN(center) || math.IsNaN(width) {
		return Normalize(r)
	}
	slope := r.RescaleSlope
	if slope == 0 {
		slope = 1
	}
	lower := center - 0.5 - (width-1)/2
	upper := center - 0.5 + (width-1)/2
	return toDisplay(r, func(v int32) uint8 {
		x := float64(v)*slope + r.RescaleIntercept
		switch {
		case x <= lower:
			return 0
		case x > upper:
			return 255
		}
		if width == 1 {
			return 255
		}
		return clamp8(math.Floor(((x-(center-0.5))/(width-1) + 0.5) * 255))
	})
}

func toDisplay(r *dicom.PixelRaster, lut func(int32) uint8) *DisplayRaster {
	d := NewDisplayRaster(r.Columns, r.Rows)
	n := r.Rows * r.Columns
	for p := 0; p < n; p++ {
		o := p * 4
		if r.SamplesPerPixel == 3 {
			s := p * 3
			d.Pix[o], d.Pix[o+1], d.Pix[o+2] = lut(r.Data[s]), lut(r.Data[s+1]), lut(r.Data[s+2])
			continue
		}
		g := lut(r.Data[p*r.SamplesPerPixel])
		d.Pix[o], d.Pix[o+1], d.Pix[o+2] = g, g, g
	}
	return d
}

// Invert returns a copy with RGB channels inverted, as MONOCHROME1 requires.
func Invert(d *DisplayRaster) *DisplayRaster {
	out := &DisplayRaster{Width: d.Width, Height: d.Height, Pix: make([]uint8, len(d.Pix))}
	for i := 0; i < len(d.Pix); i += 4 {
		out.Pix[i] = 255 - d.Pix[i]
		out.Pix[i+1] = 255 - d.Pix[i+1]
		out.Pix[i+2] = 255 - d.Pix[i+2]
		out.Pix[i+3] = d.Pix[i+3]
	}
	return out
}

// Options selects how a raster is rendered for display.
type Options struct {
	// Window uses the dataset's Window Center/Width when present.
	Window bool
	Center float64
	Width  float64
}

// Render normalizes r, windowed when requested, and inverts MONOCHROME1 data.
func Render(r *dicom.PixelRaster, opts Options) *DisplayRaster {
	var d *DisplayRaster
	if opts.Window && opts.Width >= 1 {
		d = NormalizeWindow(r, opts.Center, opts.Width)
	} else {
		d = Normalize(r)
	}
	if r.Photometric == "MONOCHROME1" {
		d = Invert(d)
	}
	return d
}
