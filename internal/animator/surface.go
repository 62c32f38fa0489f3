package animator

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	"github.com/aggressionjsk/ai-saas-app/internal/system"
)

// Quality selects the resampling kernel.
type Quality string

const (
	QualityNearest    Quality = "nearest"
	QualityBilinear   Quality = "bilinear"
	QualityCatmullRom Quality = "catmullrom"
)

// ParseQuality accepts the config spelling of a Quality.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityNearest, QualityBilinear, QualityCatmullRom:
		return q, nil
	case "":
		return QualityBilinear, nil
	}
	return "", failure.New(failure.KindInvalid, "animator.quality", fmt.Errorf("unknown quality %q", s))
}

func (q Quality) interpolator() draw.Interpolator {
	switch q {
	case QualityNearest:
		return draw.NearestNeighbor
	case QualityCatmullRom:
		return draw.CatmullRom
	}
	return draw.ApproxBiLinear
}

// Surface is the fixed-size square render target of one session. It is
// borrowed from the shared image pool and must be released after the
// recorder has stopped.
type Surface struct {
	img    *image.RGBA
	interp draw.Interpolator
}

func NewSurface(size int, q Quality) *Surface {
	return &Surface{
		img:    system.GetImage(image.Rect(0, 0, size, size)),
		interp: q.interpolator(),
	}
}

// Image exposes the backing buffer.
func (s *Surface) Image() *image.RGBA { return s.img }

// Render clears the surface to transparent and draws crop of src scaled to
// fill it.
func (s *Surface) Render(src image.Image, c Crop) {
	clear(s.img.Pix)

	size := s.img.Rect.Size()
	b := src.Bounds()
	sx := float64(size.X) / c.W
	sy := float64(size.Y) / c.H
	ox := float64(b.Min.X) + c.X
	oy := float64(b.Min.Y) + c.Y

	// Maps source pixel space onto the surface.
	m := f64.Aff3{
		sx, 0, -ox * sx,
		0, sy, -oy * sy,
	}
	s.interp.Transform(s.img, m, src, b, draw.Over, nil)
}

// Release returns the buffer to the pool. The surface must not be used
// afterwards.
func (s *Surface) Release() {
	if s.img != nil {
		system.PutImage(s.img)
		s.img = nil
	}
}
