// Package source turns fetched bytes into a drawable SourceImage.
package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// Image is a decoded, read-only raster.
type Image struct {
	image.Image
	Width  int
	Height int
	Format string // png, jpeg, gif, webp, bmp, tiff or pdf
}

// Decode decodes raster bytes or, for PDF input, rasterises the first page.
// Every failure is a failure.KindDecode error.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, failure.Newf(failure.KindDecode, "source.decode", "empty image data")
	}
	if isPDF(data) {
		return decodePDF(data)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failure.New(failure.KindDecode, "source.decode", err)
	}
	return wrap(img, format)
}

// Open reads and decodes the file at path.
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}

func wrap(img image.Image, format string) (*Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, failure.Newf(failure.KindDecode, "source.decode", "image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return &Image{Image: img, Width: b.Dx(), Height: b.Dy(), Format: format}, nil
}
