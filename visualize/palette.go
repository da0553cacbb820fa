// Package visualize - Draws detection tables over images.
package visualize

import (
	"image/color"
	"math"

	"github.com/nvr-ai/go-frcnn/models"
	"github.com/pkg/errors"
)

// Palette maps a class id to the color its boxes are drawn with.
type Palette map[int]color.RGBA

// NewPalette samples one color per class from the HSV hue wheel, class i
// getting hue i/n.
//
// Arguments:
//   - classes: The active class table.
//
// Returns:
//   - Palette: Exactly one entry per class id.
func NewPalette(classes *models.OutputClassSet) Palette {
	n := classes.Len()
	p := make(Palette, n)
	for i := 0; i < n; i++ {
		p[i] = hsv(float64(i)/float64(n), 1, 1)
	}
	return p
}

// Validate checks that the palette has exactly one color per class.
func (p Palette) Validate(classes *models.OutputClassSet) error {
	if len(p) != classes.Len() {
		return errors.Errorf("palette has %d colors for %d %s classes", len(p), classes.Len(), classes.Dataset)
	}
	for i := 0; i < classes.Len(); i++ {
		if _, ok := p[i]; !ok {
			return errors.Errorf("palette has no color for class %d", i)
		}
	}
	return nil
}

// Color returns the color for a class id, or white if it has none.
func (p Palette) Color(id int) color.RGBA {
	c, ok := p[id]
	if !ok {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return c
}

// hsv converts a hue in [0, 1) with saturation and value to opaque RGB.
func hsv(h, s, v float64) color.RGBA {
	h = math.Mod(h, 1) * 6
	sector := math.Floor(h)
	f := h - sector
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(sector) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	to8 := func(x float64) uint8 { return uint8(math.Round(x * 255)) }
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 0xff}
}
