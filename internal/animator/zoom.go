package animator

// Zoom returns the scale factor 1 + k·t, with t clamped to [0,1].
func Zoom(t, k float64) float64 {
	return 1 + k*clamp01(t)
}

// Crop is a source rectangle in image coordinates relative to the image's
// bounds origin.
type Crop struct {
	X, Y, W, H float64
}

// SourceRect insets a w×h image symmetrically so that, stretched to fill the
// surface, it appears scaled by zoom around its centre. zoom must be in
// [1,2) for the result to be non-empty.
func SourceRect(w, h int, zoom float64) Crop {
	dx := float64(w) * (zoom - 1) / 2
	dy := float64(h) * (zoom - 1) / 2
	return Crop{
		X: dx,
		Y: dy,
		W: float64(w) - 2*dx,
		H: float64(h) - 2*dy,
	}
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

