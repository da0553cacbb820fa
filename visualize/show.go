package visualize

import (
	"fmt"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MaxWindowWidth bounds the width of a display window. Wider canvases are
// downscaled for display only.
const MaxWindowWidth = 1280

// Show opens one window per canvas and blocks until a key is pressed.
//
// Arguments:
//   - title: The window title prefix.
//   - canvases: The canvases to display.
//
// Returns:
//   - error: If a canvas cannot be converted for display.
func Show(title string, canvases []*Canvas) error {
	var windows []*gocv.Window
	defer func() {
		for _, w := range windows {
			w.Close()
		}
	}()

	for i, c := range canvases {
		mat, err := DisplayMat(c)
		if err != nil {
			return err
		}
		w := gocv.NewWindow(fmt.Sprintf("%s %d", title, i+1))
		w.IMShow(mat)
		mat.Close()
		windows = append(windows, w)
	}
	if len(windows) > 0 {
		windows[len(windows)-1].WaitKey(0)
	}
	return nil
}

// DisplayMat converts a canvas to a BGR matrix no wider than MaxWindowWidth.
// The caller must Close it.
func DisplayMat(c *Canvas) (gocv.Mat, error) {
	img := c.Image()
	if b := img.Bounds(); b.Dx() > MaxWindowWidth {
		h := b.Dy() * MaxWindowWidth / b.Dx()
		img = images.ResizeImage(img, MaxWindowWidth, h, images.LanczosFilter)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert canvas for display")
	}
	return mat, nil
}
