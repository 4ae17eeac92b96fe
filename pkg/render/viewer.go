package render

import "sync"

// Viewer holds a base raster and an optional overlay and recomposites on each
// opacity change. It is safe for concurrent use.
type Viewer struct {
	mu      sync.Mutex
	base    *DisplayRaster
	overlay *DisplayRaster
	opacity float64
}

// NewViewer returns a viewer at DefaultOpacity. overlay may be nil.
func NewViewer(base, overlay *DisplayRaster) (*Viewer, error) {
	if overlay != nil && (base.Width != overlay.Width || base.Height != overlay.Height) {
		return nil, &DimensionMismatchError{Base: base.Size(), Overlay: overlay.Size()}
	}
	return &Viewer{base: base, overlay: overlay, opacity: DefaultOpacity}, nil
}

// Opacity returns the current overlay opacity.
func (v *Viewer) Opacity() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opacity
}

// SetOpacity clamps and stores opacity, then returns the recomposited raster.
func (v *Viewer) SetOpacity(opacity float64) *DisplayRaster {
	v.mu.Lock()
	v.opacity = ClampOpacity(opacity)
	v.mu.Unlock()
	return v.Frame()
}

// Frame returns the composite at the current opacity, or a copy of the base
// alone. The caller owns the result.
func (v *Viewer) Frame() *DisplayRaster {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.overlay == nil {
		return v.base.Clone()
	}
	out, _ := Blend(v.base, v.overlay, v.opacity)
	return out
}
