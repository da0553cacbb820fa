// Package images - Pixel containers, codecs and resampling for the detection pipeline.
package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ErrEmptyImage is returned when an operation needs at least one pixel.
var ErrEmptyImage = errors.New("image has no pixels")

// Channels is the number of interleaved channels in a Raster.
const Channels = 3

// Raster is an 8-bit, 3-channel image stored row-major with interleaved BGR
// samples, the layout OpenCV uses for CV_8UC3 matrices.
//
// Rasters are treated as immutable once handed to the pipeline.
type Raster struct {
	// Pix holds Height*Width*3 bytes in B, G, R order.
	Pix []uint8 `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewRaster allocates a zeroed raster of the given size.
func NewRaster(width, height int) *Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Raster{
		Pix:    make([]uint8, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// Filled returns a raster whose every sample equals v.
//
// Arguments:
//   - width: The width in pixels.
//   - height: The height in pixels.
//   - v: The value written to every channel of every pixel.
//
// Returns:
//   - *Raster: The filled raster.
//
// @example
// warmup := images.Filled(500, 300, 128)
func Filled(width, height int, v uint8) *Raster {
	r := NewRaster(width, height)
	for i := range r.Pix {
		r.Pix[i] = v
	}
	return r
}

// Empty reports whether the raster holds no pixels.
func (r *Raster) Empty() bool {
	return r == nil || r.Width == 0 || r.Height == 0
}

// Bounds returns the raster extent as an image.Rectangle.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// PixOffset returns the index of the first (blue) sample of pixel (x, y).
func (r *Raster) PixOffset(x, y int) int {
	return (y*r.Width + x) * Channels
}

// BGR returns the three samples of pixel (x, y).
func (r *Raster) BGR(x, y int) (b, g, red uint8) {
	i := r.PixOffset(x, y)
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// SetBGR writes the three samples of pixel (x, y).
func (r *Raster) SetBGR(x, y int, b, g, red uint8) {
	i := r.PixOffset(x, y)
	r.Pix[i], r.Pix[i+1], r.Pix[i+2] = b, g, red
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Pix: make([]uint8, len(r.Pix)), Width: r.Width, Height: r.Height}
	copy(out.Pix, r.Pix)
	return out
}

// FromImage converts any image.Image into a BGR raster. Alpha is discarded.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *Raster: A new raster in BGR channel order.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	out := NewRaster(b.Dx(), b.Dy())

	if src, ok := img.(*image.NRGBA); ok {
		Parallel(out.Height, func(start, end int) {
			for y := start; y < end; y++ {
				for x := 0; x < out.Width; x++ {
					s := src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y):]
					out.SetBGR(x, y, s[2], s[1], s[0])
				}
			}
		})
		return out
	}

	Parallel(out.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < out.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.SetBGR(x, y, c.B, c.G, c.R)
			}
		}
	})
	return out
}

// RGBA converts the raster to an opaque RGBA image, swapping BGR to RGB for
// display.
func (r *Raster) RGBA() *image.RGBA {
	dst := image.NewRGBA(r.Bounds())
	Parallel(r.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < r.Width; x++ {
				b, g, red := r.BGR(x, y)
				o := dst.PixOffset(x, y)
				dst.Pix[o+0] = red
				dst.Pix[o+1] = g
				dst.Pix[o+2] = b
				dst.Pix[o+3] = 0xff
			}
		}
	})
	return dst
}

// FloatImage is a float32 image stored row-major with interleaved channels
// (HWC), the working representation for mean subtraction and resampling.
type FloatImage struct {
	Data     []float32
	Height   int
	Width    int
	Channels int
}

// NewFloatImage allocates a zeroed HWC float image.
func NewFloatImage(height, width, channels int) *FloatImage {
	return &FloatImage{
		Data:     make([]float32, height*width*channels),
		Height:   height,
		Width:    width,
		Channels: channels,
	}
}

// At returns the sample at row y, column x, channel c.
func (f *FloatImage) At(y, x, c int) float32 {
	return f.Data[(y*f.Width+x)*f.Channels+c]
}

// Float converts the raster to float32 and subtracts a per-channel offset
// (in BGR order) from every pixel.
//
// Arguments:
//   - mean: Per-channel values subtracted from each sample.
//
// Returns:
//   - *FloatImage: A new HWC float image with the same dimensions.
func (r *Raster) Float(mean [Channels]float32) *FloatImage {
	out := NewFloatImage(r.Height, r.Width, Channels)
	for i, v := range r.Pix {
		out.Data[i] = float32(v) - mean[i%Channels]
	}
	return out
}
