package visualize

import (
	"image"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// LabelFontSize is the label size in points.
const LabelFontSize = 12

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// labelFace returns a new face for the embedded Go Regular font.
func labelFace() (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, errors.Wrap(fontErr, "failed to parse label font")
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: LabelFontSize}), nil
}

// Canvas is an image being annotated.
type Canvas struct {
	dc    *gg.Context
	boxes int
}

// NewCanvas creates a canvas showing img. The BGR raster is converted to RGB.
//
// Arguments:
//   - img: The background image.
//
// Returns:
//   - *Canvas: The canvas.
//   - error: If the label font cannot be loaded.
func NewCanvas(img *images.Raster) (*Canvas, error) {
	face, err := labelFace()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForRGBA(img.RGBA())
	dc.SetFontFace(face)
	return &Canvas{dc: dc}, nil
}

// Boxes returns the number of rectangles drawn so far.
func (c *Canvas) Boxes() int {
	return c.boxes
}

// Image returns the annotated image.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// Save writes the annotated image. The format follows the file extension.
func (c *Canvas) Save(path string) error {
	return images.Save(path, c.dc.Image())
}
