package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	// A simple 100x100 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		factor        float64
		wantW, wantH  int
	}{
		{"upscale", 500, 375, 1.6, 800, 600},
		{"warmup image", 500, 300, 2.0, 1000, 600},
		{"downscale", 2000, 1000, 0.5, 1000, 500},
		{"half rounds to even", 5, 3, 0.5, 2, 2},
		{"never collapses", 10, 10, 0.01, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledSize(tt.width, tt.height, tt.factor)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestScaleFloatConstantImage(t *testing.T) {
	src := NewFloatImage(30, 50, 3)
	for i := range src.Data {
		src.Data[i] = float32(i%3) - 100
	}

	for _, filter := range []ResampleFilter{NearestNeighborFilter, BilinearFilter} {
		t.Run(filter.String(), func(t *testing.T) {
			for _, factor := range []float64{0.5, 1.6, 2.0} {
				out := ScaleFloat(src, factor, filter)
				w, h := ScaledSize(50, 30, factor)
				require.Equal(t, w, out.Width)
				require.Equal(t, h, out.Height)
				require.Len(t, out.Data, w*h*3)

				// A constant image stays constant per channel.
				for i, v := range out.Data {
					assert.InDelta(t, float32(i%3)-100, v, 1e-3, "factor %v index %d", factor, i)
				}
			}
		})
	}
}

func TestScaleFloatBilinearMatchesPixelCenters(t *testing.T) {
	// 1x2 ramp upscaled 2x: OpenCV INTER_LINEAR yields 0, 0.25, 0.75, 1 on
	// both output rows.
	src := &FloatImage{Data: []float32{0, 1}, Height: 1, Width: 2, Channels: 1}
	out := ScaleFloat(src, 2, BilinearFilter)

	require.Equal(t, 4, out.Width)
	require.Equal(t, 2, out.Height)
	require.Len(t, out.Data, 8)
	assert.InDeltaSlice(t, []float32{0, 0.25, 0.75, 1, 0, 0.25, 0.75, 1}, out.Data, 1e-6)
}

func TestScaleFloatIdentity(t *testing.T) {
	src := NewFloatImage(4, 4, 1)
	for i := range src.Data {
		src.Data[i] = float32(i)
	}
	out := ScaleFloat(src, 1, BilinearFilter)
	assert.Equal(t, src.Data, out.Data)

	out.Data[0] = 42
	assert.Equal(t, float32(0), src.Data[0], "output must not alias the input")
}

func TestResizeImage(t *testing.T) {
	img := ResizeImage(getTestImage(), 50, 40, LanczosFilter)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())

	tiny := ResizeImage(getTestImage(), 0, 0, BilinearFilter)
	assert.Equal(t, 1, tiny.Bounds().Dx())
}

func TestScaleRasterKeepsChannelOrder(t *testing.T) {
	r := NewRaster(20, 10)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			r.SetBGR(x, y, 10, 20, 30)
		}
	}

	out := ScaleRaster(r, 1.5, BicubicFilter)
	require.Equal(t, 30, out.Width)
	require.Equal(t, 15, out.Height)

	b, g, red := out.BGR(7, 7)
	assert.Equal(t, []uint8{10, 20, 30}, []uint8{b, g, red})
}

func TestWideFilters(t *testing.T) {
	assert.False(t, NearestNeighborFilter.Wide())
	assert.False(t, BilinearFilter.Wide())
	assert.True(t, BicubicFilter.Wide())
	assert.True(t, LanczosFilter.Wide())
	assert.True(t, MitchellNetravaliFilter.Wide())
}

func TestParseResampleFilter(t *testing.T) {
	f, ok := ParseResampleFilter("lanczos3")
	assert.True(t, ok)
	assert.Equal(t, LanczosFilter, f)

	f, ok = ParseResampleFilter("cubic-spline")
	assert.False(t, ok)
	assert.Equal(t, BilinearFilter, f)
}

func TestParallelCoversRange(t *testing.T) {
	seen := make([]int, 1000)
	Parallel(len(seen), func(start, end int) {
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	for i, n := range seen {
		require.Equal(t, 1, n, "index %d", i)
	}

	Parallel(0, func(int, int) { t.Fatal("must not be called for an empty range") })
}
