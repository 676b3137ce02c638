package render

import (
	"fmt"
	"image"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/fpang/virtual-tryon/internal/garment"
)

// Crop cuts region out of src. region is in the coordinate space the
// preview was displayed at (displayWidth x displayHeight) and is scaled to
// the image's natural size before cutting. The region is clamped to the
// image. The result is PNG.
func Crop(src garment.Payload, region garment.Rect, displayWidth, displayHeight int) (garment.Payload, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return garment.Payload{}, fmt.Errorf("crop region must have a positive size")
	}
	img, err := decode(src)
	if err != nil {
		return garment.Payload{}, err
	}
	b := img.Bounds()

	if displayWidth <= 0 {
		displayWidth = b.Dx()
	}
	if displayHeight <= 0 {
		displayHeight = b.Dy()
	}
	scaleX := float64(b.Dx()) / float64(displayWidth)
	scaleY := float64(b.Dy()) / float64(displayHeight)

	r := image.Rect(
		b.Min.X+int(float64(region.X)*scaleX),
		b.Min.Y+int(float64(region.Y)*scaleY),
		b.Min.X+int(float64(region.X+region.Width)*scaleX),
		b.Min.Y+int(float64(region.Y+region.Height)*scaleY),
	).Intersect(b)
	if r.Empty() {
		return garment.Payload{}, fmt.Errorf("crop region lies outside the image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)

	log.Debug().
		Int("sourceWidth", b.Dx()).
		Int("sourceHeight", b.Dy()).
		Int("cropWidth", r.Dx()).
		Int("cropHeight", r.Dy()).
		Msg("Cropped page preview")
	return encodePNG(dst)
}
