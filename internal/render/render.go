// Package render holds the pixel-level helpers the service runs on uploaded
// and generated images: document page counting, crop of a page preview and
// the design-number overlay.
//
// All decoding and encoding is pure Go (golang.org/x/image), so the service
// needs no native image libraries.
package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/webp"

	"github.com/fpang/virtual-tryon/internal/garment"
)

// PageCount returns the number of pages in a PDF document.
func PageCount(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	n := r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return n, nil
}

// decode reads a JPEG, PNG or WebP payload.
func decode(p garment.Payload) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", p.MIMEType, err)
	}
	return img, nil
}

func encodePNG(img image.Image) (garment.Payload, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return garment.Payload{}, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return garment.Payload{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}
