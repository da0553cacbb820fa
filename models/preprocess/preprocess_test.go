package preprocess

import (
	"testing"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactor(t *testing.T) {
	tests := []struct {
		name          string
		height, width int
		want          float64
	}{
		// Short side binds: 600/375 = 1.6 < 1000/500 = 2.
		{"short side binds", 375, 500, 1.6},
		// Long side binds: 1000/2000 = 0.5 < 600/900.
		{"long side binds", 900, 2000, 0.5},
		{"portrait", 500, 375, 1.6},
		{"warmup image", 300, 500, 2.0},
		{"square", 600, 600, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Factor(tt.height, tt.width, DefaultScale, DefaultMaxSize)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, f, 1e-12)
		})
	}

	_, err := Factor(0, 10, DefaultScale, DefaultMaxSize)
	assert.Equal(t, images.ErrEmptyImage, errors.Cause(err))
}

func TestRunShapesAndInfo(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantH, wantW  int
		wantFactor    float32
	}{
		{"landscape", 500, 375, 600, 800, 1.6},
		{"warmup", 500, 300, 600, 1000, 2.0},
		{"long side binds", 2000, 900, 450, 1000, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(images.Filled(tt.width, tt.height, 128), DefaultConfig())
			require.NoError(t, err)

			assert.Equal(t, []int{3, tt.wantH, tt.wantW}, []int(res.Tensor.Shape()))
			assert.Equal(t, float32(tt.wantH), res.Info.Height)
			assert.Equal(t, float32(tt.wantW), res.Info.Width)
			assert.InDelta(t, tt.wantFactor, res.Info.Factor, 1e-6)
			assert.Equal(t, []float32{res.Info.Height, res.Info.Width, res.Info.Factor}, res.Info.Slice())

			blob := res.Blob()
			assert.Equal(t, []int{1, 3, tt.wantH, tt.wantW}, []int(blob.Shape()))
		})
	}
}

func TestRunConstantImageIsMeanSubtracted(t *testing.T) {
	res, err := Run(images.Filled(50, 40, 128), DefaultConfig())
	require.NoError(t, err)

	data := res.Tensor.Float32s()
	plane := len(data) / 3
	for c := 0; c < 3; c++ {
		want := 128 - DefaultMean[c]
		for _, v := range data[c*plane : (c+1)*plane] {
			require.InDelta(t, want, v, 1e-3, "channel %d", c)
		}
	}
}

func TestRunChannelLayout(t *testing.T) {
	// 2x2 image at factor 1 so resampling is the identity.
	img := images.NewRaster(2, 2)
	img.SetBGR(0, 0, 1, 2, 3)
	img.SetBGR(1, 0, 4, 5, 6)
	img.SetBGR(0, 1, 7, 8, 9)
	img.SetBGR(1, 1, 10, 11, 12)

	cfg := DefaultConfig()
	cfg.Scale, cfg.MaxSize = 2, 2
	cfg.Mean = [3]float32{}

	res, err := Run(img, cfg)
	require.NoError(t, err)
	assert.Equal(t, []float32{
		1, 4, 7, 10, // blue plane
		2, 5, 8, 11, // green plane
		3, 6, 9, 12, // red plane
	}, res.Tensor.Float32s())

	cfg.Transpose = [3]int{0, 1, 2}
	res, err = Run(img, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, []int(res.Tensor.Shape()))
	assert.Equal(t, img.Float([3]float32{}).Data, res.Tensor.Float32s())
}

func TestRunIsDeterministic(t *testing.T) {
	img := images.NewRaster(37, 23)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	before := img.Checksum()

	a, err := Run(img, DefaultConfig())
	require.NoError(t, err)
	b, err := Run(img, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Tensor.Float32s(), b.Tensor.Float32s())
	assert.Equal(t, a.Info, b.Info)
	assert.Equal(t, before, img.Checksum(), "input must not be modified")
}

func TestRunErrors(t *testing.T) {
	_, err := Run(images.NewRaster(0, 0), DefaultConfig())
	assert.Equal(t, images.ErrEmptyImage, errors.Cause(err))

	bad := []Config{
		func() Config { c := DefaultConfig(); c.Transpose = [3]int{0, 0, 1}; return c }(),
		func() Config { c := DefaultConfig(); c.Transpose = [3]int{0, 1, 3}; return c }(),
		func() Config { c := DefaultConfig(); c.Scale = 0; return c }(),
		func() Config { c := DefaultConfig(); c.MaxSize = -1; return c }(),
	}
	for _, cfg := range bad {
		_, err := Run(images.Filled(4, 4, 1), cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestRunWithWideFilters(t *testing.T) {
	for _, filter := range []images.ResampleFilter{images.LanczosFilter, images.BicubicFilter} {
		cfg := DefaultConfig()
		cfg.Filter = filter

		res, err := Run(images.Filled(500, 375, 128), cfg)
		require.NoError(t, err, filter.String())
		assert.Equal(t, []int{3, 600, 800}, []int(res.Tensor.Shape()))
	}
}

func TestRunWideFiltersMatchScaleRaster(t *testing.T) {
	img := images.NewRaster(50, 40)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.SetBGR(x, y, uint8(5*x), uint8(6*y), uint8(3*x+2*y))
		}
	}

	filters := []images.ResampleFilter{images.BicubicFilter, images.LanczosFilter, images.MitchellNetravaliFilter}
	for _, filter := range filters {
		t.Run(filter.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Scale = 60
			cfg.MaxSize = 100
			cfg.Filter = filter

			res, err := Run(img, cfg)
			require.NoError(t, err)
			require.InDelta(t, 1.5, res.Factor, 1e-12)

			want := images.ScaleRaster(img, res.Factor, filter).Float(cfg.Mean)
			require.Equal(t, []int{3, want.Height, want.Width}, []int(res.Tensor.Shape()))

			data := res.Tensor.Float32s()
			plane := want.Height * want.Width
			for c := 0; c < 3; c++ {
				for y := 0; y < want.Height; y++ {
					for x := 0; x < want.Width; x++ {
						require.Equal(t, want.At(y, x, c), data[c*plane+y*want.Width+x], "channel %d pixel (%d, %d)", c, x, y)
					}
				}
			}
		})
	}
}
