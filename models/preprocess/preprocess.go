// Package preprocess - Turns a BGR image into the network input blob for a
// two-stage detector: mean subtraction, aspect-preserving rescale and channel
// reordering.
package preprocess

import (
	"math"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// DefaultScale is the target length of the shorter image side.
	DefaultScale = 600
	// DefaultMaxSize caps the length of the longer image side.
	DefaultMaxSize = 1000
)

// DefaultMean is the per-channel BGR pixel mean of the training set.
var DefaultMean = [images.Channels]float32{102.9801, 115.9465, 122.7717}

// DefaultTranspose reorders HWC to CHW.
var DefaultTranspose = [3]int{2, 0, 1}

// Config defines preprocessing for one network.
type Config struct {
	// Mean is subtracted from each BGR channel before resizing.
	Mean [images.Channels]float32 `json:"mean" yaml:"mean"`
	// Scale is the target length of the shorter side.
	Scale int `json:"scale" yaml:"scale"`
	// MaxSize bounds the longer side; it wins over Scale when both apply.
	MaxSize int `json:"maxSize" yaml:"maxSize"`
	// Transpose is the axis permutation applied to the HWC image.
	Transpose [3]int `json:"transpose" yaml:"transpose"`
	// Filter is the resampling filter. The zero value is nearest-neighbour, so
	// use DefaultConfig as a starting point.
	Filter images.ResampleFilter `json:"-" yaml:"-"`
}

// DefaultConfig returns the preprocessing used by the released Faster R-CNN
// models.
func DefaultConfig() Config {
	return Config{
		Mean:      DefaultMean,
		Scale:     DefaultScale,
		MaxSize:   DefaultMaxSize,
		Transpose: DefaultTranspose,
		Filter:    images.BilinearFilter,
	}
}

// Validate checks that the configuration can produce a blob.
func (c Config) Validate() error {
	if c.Scale <= 0 {
		return errors.Errorf("scale must be positive, got %d", c.Scale)
	}
	if c.MaxSize <= 0 {
		return errors.Errorf("max size must be positive, got %d", c.MaxSize)
	}
	var seen [3]bool
	for _, ax := range c.Transpose {
		if ax < 0 || ax > 2 || seen[ax] {
			return errors.Errorf("transpose %v is not a permutation of (0, 1, 2)", c.Transpose)
		}
		seen[ax] = true
	}
	return nil
}

// Info is the image metadata fed to the network alongside the blob.
type Info struct {
	// Height of the resized image.
	Height float32
	// Width of the resized image.
	Width float32
	// Factor is the scale applied to the original image.
	Factor float32
}

// Slice returns the metadata in network order (height, width, factor).
func (i Info) Slice() []float32 {
	return []float32{i.Height, i.Width, i.Factor}
}

// Result is the output of Run.
type Result struct {
	// Tensor is the resized, mean-subtracted image with axes reordered per
	// Config.Transpose (C, H, W by default).
	Tensor *tensor.Dense
	// Info is (resized height, resized width, factor).
	Info Info
	// Factor is the exact scale applied, at full precision.
	Factor float64
}

// Blob returns Tensor with a leading batch axis of 1. It shares the backing
// data with Tensor.
func (r *Result) Blob() *tensor.Dense {
	shape := append([]int{1}, r.Tensor.Shape()...)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(r.Tensor.Float32s()))
}

// Factor returns the rescale factor for an image of the given size:
// min(scale/short, maxSize/long).
//
// Arguments:
//   - height, width: The original image size in pixels.
//   - scale: The target shorter side.
//   - maxSize: The bound on the longer side.
//
// Returns:
//   - float64: The factor, or an error if either side is zero.
func Factor(height, width, scale, maxSize int) (float64, error) {
	short, long := height, width
	if short > long {
		short, long = long, short
	}
	if short <= 0 {
		return 0, errors.Wrapf(images.ErrEmptyImage, "cannot rescale %dx%d image", width, height)
	}
	return math.Min(float64(scale)/float64(short), float64(maxSize)/float64(long)), nil
}

// Run preprocesses one image. It is pure: the input is not modified and equal
// inputs give bit-identical outputs.
//
// Order of operations:
//  1. Nearest and bilinear: subtract the per-channel mean in float32, then
//     rescale both axes by Factor.
//  2. Wide filters (bicubic, lanczos3, mitchell): rescale the 8-bit image by
//     Factor with images.ScaleRaster, then subtract the mean.
//  3. Permute axes per Config.Transpose.
//
// Arguments:
//   - img: The BGR input image.
//   - cfg: The preprocessing configuration.
//
// Returns:
//   - *Result: The blob, metadata and factor.
//   - error: If the configuration is invalid or the image has no pixels.
//
// @example
// res, err := preprocess.Run(raster, preprocess.DefaultConfig())
// // res.Tensor.Shape() == (3, 600, 800) for a 375x500 image
func Run(img *images.Raster, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.Wrap(images.ErrEmptyImage, "cannot preprocess image")
	}

	factor, err := Factor(img.Height, img.Width, cfg.Scale, cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	var resized *images.FloatImage
	if cfg.Filter.Wide() {
		resized = images.ScaleRaster(img, factor, cfg.Filter).Float(cfg.Mean)
	} else {
		resized = images.ScaleFloat(img.Float(cfg.Mean), factor, cfg.Filter)
	}

	t := tensor.New(
		tensor.WithShape(resized.Height, resized.Width, resized.Channels),
		tensor.WithBacking(resized.Data),
	)
	if err := t.T(cfg.Transpose[:]...); err != nil {
		return nil, errors.Wrapf(err, "failed to transpose by %v", cfg.Transpose)
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to materialize transpose")
	}

	return &Result{
		Tensor: t,
		Info: Info{
			Height: float32(resized.Height),
			Width:  float32(resized.Width),
			Factor: float32(factor),
		},
		Factor: factor,
	}, nil
}
