package visualize

import (
	"fmt"
	"image/color"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/models"
	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/pkg/errors"
)

const (
	// DefaultLineWidth is the box outline width in pixels.
	DefaultLineWidth = 2.5
	labelPad         = 2.0
)

// labelAlpha makes the label background half transparent.
const labelAlpha uint8 = 0x80

// Plotter draws detections for one class table.
type Plotter struct {
	Classes   *models.OutputClassSet
	Palette   Palette
	LineWidth float64
}

// NewPlotter creates a plotter with a palette sampled for classes.
//
// Arguments:
//   - classes: The active class table.
//   - palette: The box colors, or nil to sample them with NewPalette.
//
// Returns:
//   - *Plotter: The plotter.
//   - error: If the palette does not cover the class table.
func NewPlotter(classes *models.OutputClassSet, palette Palette) (*Plotter, error) {
	if palette == nil {
		palette = NewPalette(classes)
	}
	if err := palette.Validate(classes); err != nil {
		return nil, err
	}
	return &Plotter{Classes: classes, Palette: palette, LineWidth: DefaultLineWidth}, nil
}

// Plot draws every detection scoring at least threshold over img.
//
// A canvas is created for img when canvas is nil. With an empty table the
// canvas only shows the image. Each kept row gets an outline in its class
// color and a "{name} {score}" label just above the box, white on a
// half-transparent patch of the same color.
//
// Arguments:
//   - img: The BGR image the detections belong to.
//   - dets: Detections in img's pixel coordinates.
//   - threshold: The minimum score drawn.
//   - canvas: The canvas to draw on, or nil.
//   - lineWidth: The outline width in pixels; <= 0 uses p.LineWidth.
//
// Returns:
//   - *Canvas: The canvas drawn on.
//   - error: If a class id has no name.
//
// @example
// canvas, err := plotter.Plot(img, dets, 0.5, nil, 0)
// fmt.Println(canvas.Boxes())
func (p *Plotter) Plot(img *images.Raster, dets []postprocess.Result, threshold float32, canvas *Canvas, lineWidth float64) (*Canvas, error) {
	if canvas == nil {
		var err error
		if canvas, err = NewCanvas(img); err != nil {
			return nil, err
		}
	}
	kept := postprocess.Above(dets, threshold)
	if len(kept) == 0 {
		return canvas, nil
	}
	if lineWidth <= 0 {
		lineWidth = p.LineWidth
	}

	dc := canvas.dc
	dc.SetLineWidth(lineWidth)
	for _, det := range kept {
		name, err := p.Classes.Name(det.Class)
		if err != nil {
			return canvas, errors.Wrap(err, "cannot label detection")
		}
		c := p.Palette.Color(det.Class)

		x, y := float64(det.Box.X1), float64(det.Box.Y1)
		dc.SetColor(c)
		dc.DrawRectangle(x, y, float64(det.Box.Width()), float64(det.Box.Height()))
		dc.Stroke()
		canvas.boxes++

		label := fmt.Sprintf("%s %.3f", name, det.Score)
		w, h := dc.MeasureString(label)
		baseline := y - 2
		dc.SetColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: labelAlpha})
		dc.DrawRectangle(x, baseline-h-2*labelPad, w+2*labelPad, h+2*labelPad)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawString(label, x+labelPad, baseline-labelPad)
	}
	return canvas, nil
}
