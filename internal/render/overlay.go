package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fpang/virtual-tryon/internal/designnumber"
	"github.com/fpang/virtual-tryon/internal/garment"
)

// Overlay text height is 2.5% of the image width, times the size multiplier,
// and never below minTextHeight pixels.
const (
	textHeightRatio = 0.025
	minTextHeight   = 12
)

var sizeMultiplier = map[designnumber.Size]float64{
	designnumber.Small:  1,
	designnumber.Medium: 1.5,
	designnumber.Large:  2,
}

type overlayColors struct {
	background color.Color
	text       color.Color
}

var styles = map[designnumber.Style]overlayColors{
	designnumber.WhiteOnDark: {
		background: color.NRGBA{R: 0, G: 0, B: 0, A: 153},
		text:       color.White,
	},
	designnumber.BlackOnLight: {
		background: color.NRGBA{R: 255, G: 255, B: 255, A: 204},
		text:       color.Black,
	},
}

// OverlayDesignNumber draws text on a padded box in the given corner of src
// and returns the result as PNG. The glyphs come from the 7x13 basic bitmap
// face, scaled up by an integer factor so they stay crisp.
func OverlayDesignNumber(src garment.Payload, text string, pos designnumber.Position, style designnumber.Style, size designnumber.Size) (garment.Payload, error) {
	img, err := decode(src)
	if err != nil {
		return garment.Payload{}, err
	}
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	glyphs := rasterizeText(text)

	mult, ok := sizeMultiplier[size]
	if !ok {
		mult = 1
	}
	target := math.Max(minTextHeight, math.Round(float64(b.Dx())*textHeightRatio*mult))
	scale := int(math.Max(1, math.Round(target/float64(glyphs.Bounds().Dy()))))

	textW := glyphs.Bounds().Dx() * scale
	textH := glyphs.Bounds().Dy() * scale
	pad := textH / 2

	box := boxRect(canvas.Bounds(), pos, textW+2*pad, textH+pad, pad)

	colors, ok := styles[style]
	if !ok {
		colors = styles[designnumber.WhiteOnDark]
	}
	draw.Draw(canvas, box, image.NewUniform(colors.background), image.Point{}, draw.Over)

	textRect := image.Rect(box.Min.X+pad, box.Min.Y+pad/2, box.Min.X+pad+textW, box.Min.Y+pad/2+textH)
	mask := image.NewAlpha(image.Rect(0, 0, textW, textH))
	draw.NearestNeighbor.Scale(mask, mask.Bounds(), glyphs, glyphs.Bounds(), draw.Src, nil)
	draw.DrawMask(canvas, textRect, image.NewUniform(colors.text), image.Point{}, mask, image.Point{}, draw.Over)

	return encodePNG(canvas)
}

// rasterizeText renders text at the face's native size into an alpha mask.
func rasterizeText(text string) *image.Alpha {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()
	if width < 1 {
		width = 1
	}
	m := face.Metrics()
	height := (m.Ascent + m.Descent).Ceil()

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d.Dst = mask
	d.Src = image.Opaque
	d.Dot = fixed.Point26_6{X: 0, Y: m.Ascent}
	d.DrawString(text)
	return mask
}

// boxRect places a w x h box in the corner of bounds, inset by margin.
// Boxes larger than the image are clipped by the caller's draw.
func boxRect(bounds image.Rectangle, pos designnumber.Position, w, h, margin int) image.Rectangle {
	var x, y int
	switch pos {
	case designnumber.TopLeft:
		x, y = bounds.Min.X+margin, bounds.Min.Y+margin
	case designnumber.BottomLeft:
		x, y = bounds.Min.X+margin, bounds.Max.Y-h-margin
	case designnumber.BottomRight:
		x, y = bounds.Max.X-w-margin, bounds.Max.Y-h-margin
	default:
		x, y = bounds.Max.X-w-margin, bounds.Min.Y+margin
	}
	return image.Rect(x, y, x+w, y+h)
}
