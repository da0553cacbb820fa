// Package images - provides the float resampling used by the preprocessing
// pipeline for the nearest and bilinear filters.
package images

import (
	"math"
	"runtime"
	"sync"
)

// ResampleFilter defines the resampling algorithm used for image scaling.
type ResampleFilter int

const (
	// NearestNeighborFilter uses nearest-neighbor interpolation (fastest, lowest quality).
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses 2-tap linear interpolation at pixel centers, matching
	// OpenCV INTER_LINEAR.
	BilinearFilter
	// BicubicFilter uses a Catmull-Rom cubic.
	BicubicFilter
	// LanczosFilter uses Lanczos resampling with a=3.
	LanczosFilter
	// MitchellNetravaliFilter uses Mitchell-Netravali cubic filter (balanced).
	MitchellNetravaliFilter
)

// String returns the configuration name of the filter.
func (f ResampleFilter) String() string {
	switch f {
	case NearestNeighborFilter:
		return "nearest"
	case BilinearFilter:
		return "bilinear"
	case BicubicFilter:
		return "bicubic"
	case LanczosFilter:
		return "lanczos3"
	case MitchellNetravaliFilter:
		return "mitchell"
	default:
		return "unknown"
	}
}

// ParseResampleFilter maps a configuration name to a filter.
func ParseResampleFilter(name string) (ResampleFilter, bool) {
	for f := NearestNeighborFilter; f <= MitchellNetravaliFilter; f++ {
		if f.String() == name {
			return f, true
		}
	}
	return BilinearFilter, false
}

// Wide reports whether the filter reaches beyond two taps. Wide filters run on
// 8-bit samples through ScaleRaster; ScaleFloat only implements the nearest
// and bilinear paths.
func (f ResampleFilter) Wide() bool {
	return f == BicubicFilter || f == LanczosFilter || f == MitchellNetravaliFilter
}

// Contribution represents a single source sample's contribution to an output
// sample.
type Contribution struct {
	// pixel is the source pixel index.
	pixel int
	// weight is the contribution weight.
	weight float32
}

// ScaledSize returns the output size OpenCV produces when resizing a
// width x height image by factor in both directions (round half to even).
func ScaledSize(width, height int, factor float64) (int, int) {
	w := int(math.RoundToEven(float64(width) * factor))
	h := int(math.RoundToEven(float64(height) * factor))
	return max(w, 1), max(h, 1)
}

// ScaleFloat resizes src by factor in both dimensions. Source coordinates are
// mapped with the exact factor, not the rounded size ratio, as cv2.resize
// does when given fx and fy.
//
// Arguments:
//   - src: The HWC float image to resample.
//   - factor: The scale applied to both axes.
//   - filter: NearestNeighborFilter or BilinearFilter. Wide filters fall back
//     to bilinear.
//
// Returns:
//   - *FloatImage: A new image of size ScaledSize(src.Width, src.Height, factor).
//
// @example
// resized := ScaleFloat(planes, 1.6, BilinearFilter)
func ScaleFloat(src *FloatImage, factor float64, filter ResampleFilter) *FloatImage {
	dw, dh := ScaledSize(src.Width, src.Height, factor)
	return resampleFloat(src, dw, dh, 1/factor, 1/factor, filter)
}

func resampleFloat(src *FloatImage, dw, dh int, sx, sy float64, filter ResampleFilter) *FloatImage {
	if src.Width == dw && src.Height == dh {
		out := NewFloatImage(dh, dw, src.Channels)
		copy(out.Data, src.Data)
		return out
	}

	colWeights := contributions(src.Width, dw, sx, filter)
	rowWeights := contributions(src.Height, dh, sy, filter)

	// Separable: horizontal into an intermediate (srcH x dw), then vertical.
	c := src.Channels
	intermediate := NewFloatImage(src.Height, dw, c)
	Parallel(src.Height, func(start, end int) {
		for y := start; y < end; y++ {
			srcRow := src.Data[y*src.Width*c:]
			dstRow := intermediate.Data[y*dw*c:]
			for x := 0; x < dw; x++ {
				for ch := 0; ch < c; ch++ {
					var acc float32
					for _, w := range colWeights[x] {
						acc += srcRow[w.pixel*c+ch] * w.weight
					}
					dstRow[x*c+ch] = acc
				}
			}
		}
	})

	dst := NewFloatImage(dh, dw, c)
	stride := dw * c
	Parallel(dh, func(start, end int) {
		for y := start; y < end; y++ {
			dstRow := dst.Data[y*stride:]
			for _, w := range rowWeights[y] {
				srcRow := intermediate.Data[w.pixel*stride:]
				for i := 0; i < stride; i++ {
					dstRow[i] += srcRow[i] * w.weight
				}
			}
		}
	})

	return dst
}

// contributions precomputes, for each of dstLen output samples, the source
// samples and weights that produce it. scale maps destination to source
// coordinates. Filters other than nearest use the bilinear weights.
func contributions(srcLen, dstLen int, scale float64, filter ResampleFilter) [][]Contribution {
	out := make([][]Contribution, dstLen)

	switch filter {
	case NearestNeighborFilter:
		for d := 0; d < dstLen; d++ {
			s := min(int(math.Floor(float64(d)*scale)), srcLen-1)
			out[d] = []Contribution{{pixel: s, weight: 1}}
		}
		return out

	case BilinearFilter:
		for d := 0; d < dstLen; d++ {
			f := (float64(d)+0.5)*scale - 0.5
			s := int(math.Floor(f))
			f -= float64(s)
			if s < 0 {
				s, f = 0, 0
			}
			if s >= srcLen-1 {
				s, f = srcLen-1, 0
			}
			if f == 0 {
				out[d] = []Contribution{{pixel: s, weight: 1}}
				continue
			}
			out[d] = []Contribution{
				{pixel: s, weight: float32(1 - f)},
				{pixel: s + 1, weight: float32(f)},
			}
		}
		return out
	}

	return contributions(srcLen, dstLen, scale, BilinearFilter)
}

// Parallel splits the range [0, n) into roughly equal parts and runs fn on
// each part concurrently, returning when all parts are done.
//
// Arguments:
// - n: The size of the range.
// - fn: Invoked with a half-open [start, end) sub-range.
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ { ... }
//	})
func Parallel(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	workers := min(runtime.GOMAXPROCS(0), n)
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
