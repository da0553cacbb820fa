package images

import (
	"image"

	"github.com/nfnt/resize"
)

// interpolation maps a filter onto the nfnt/resize interpolation function
// used for 8-bit images.
func interpolation(filter ResampleFilter) resize.InterpolationFunction {
	switch filter {
	case NearestNeighborFilter:
		return resize.NearestNeighbor
	case BicubicFilter:
		return resize.Bicubic
	case LanczosFilter:
		return resize.Lanczos3
	case MitchellNetravaliFilter:
		return resize.MitchellNetravali
	default:
		return resize.Bilinear
	}
}

// ResizeImage resizes an 8-bit image to width x height.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//   - filter: The resampling filter.
//
// Returns:
//   - image.Image: The resized image.
func ResizeImage(img image.Image, width, height int, filter ResampleFilter) image.Image {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return resize.Resize(uint(width), uint(height), img, interpolation(filter))
}

// ScaleRaster resizes a raster by factor using the 8-bit resamplers.
//
// The BGR samples are wrapped as if they were RGB; resampling treats channels
// independently so no swap is needed.
//
// Arguments:
//   - r: The source raster.
//   - factor: The scale applied to both axes.
//   - filter: The resampling filter.
//
// Returns:
//   - *Raster: A new raster of size ScaledSize(r.Width, r.Height, factor).
func ScaleRaster(r *Raster, factor float64, filter ResampleFilter) *Raster {
	dw, dh := ScaledSize(r.Width, r.Height, factor)

	src := image.NewRGBA(r.Bounds())
	for i, j := 0, 0; i < len(r.Pix); i, j = i+Channels, j+4 {
		src.Pix[j+0] = r.Pix[i+0]
		src.Pix[j+1] = r.Pix[i+1]
		src.Pix[j+2] = r.Pix[i+2]
		src.Pix[j+3] = 0xff
	}

	resized := ResizeImage(src, dw, dh, filter)

	out := NewRaster(dw, dh)
	b := resized.Bounds()
	switch img := resized.(type) {
	case *image.RGBA:
		for y := 0; y < dh; y++ {
			for x := 0; x < dw; x++ {
				o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
				out.SetBGR(x, y, img.Pix[o], img.Pix[o+1], img.Pix[o+2])
			}
		}
	default:
		for y := 0; y < dh; y++ {
			for x := 0; x < dw; x++ {
				c0, c1, c2, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out.SetBGR(x, y, uint8(c0>>8), uint8(c1>>8), uint8(c2>>8))
			}
		}
	}
	return out
}
