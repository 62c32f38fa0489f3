package source

import (
	"bytes"

	"github.com/gen2brain/go-fitz"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// PDFDPI is the resolution used to rasterise the first page of a PDF.
const PDFDPI = 150

var pdfMagic = []byte("%PDF-")

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func decodePDF(data []byte) (*Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, failure.New(failure.KindDecode, "source.pdf", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, failure.Newf(failure.KindDecode, "source.pdf", "document has no pages")
	}
	img, err := doc.ImageDPI(0, PDFDPI)
	if err != nil {
		return nil, failure.New(failure.KindDecode, "source.pdf", err)
	}
	return wrap(img, "pdf")
}
