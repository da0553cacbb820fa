package images

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// jpegQuality is the quality used when writing JPEG files.
const jpegQuality = 95

// Load reads and decodes an image file into a BGR raster. EXIF orientation is
// applied so the raster matches what a viewer shows.
//
// Arguments:
//   - path: The image file to read (JPEG, PNG, BMP, GIF, TIFF or WebP).
//
// Returns:
//   - *Raster: The decoded image.
//   - error: If the file cannot be opened or decoded, or decodes to zero pixels.
func Load(path string) (*Raster, error) {
	var (
		img image.Image
		err error
	)
	if FormatFromPath(path) == FormatWebP {
		img, err = loadWebP(path)
	} else {
		img, err = imaging.Open(path, imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}

	r := FromImage(img)
	if r.Empty() {
		return nil, errors.Wrapf(ErrEmptyImage, "failed to load image %s", path)
	}
	return r, nil
}

func loadWebP(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return webp.Decode(f)
}

// Save encodes img to path. The format is chosen from the file extension;
// WebP is written losslessly, JPEG at a fixed high quality.
//
// Arguments:
//   - path: Destination file. Missing parent directories are created.
//   - img: The image to write.
//
// Returns:
//   - error: If the directory cannot be created or encoding fails.
func Save(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if FormatFromPath(path) == FormatWebP {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
		defer f.Close()
		return Encode(f, img, FormatWebP)
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

// Encode writes img to w in the requested format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	var err error
	switch format {
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: true})
	case FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	case FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	case FormatBMP:
		err = imaging.Encode(w, img, imaging.BMP)
	default:
		return errors.Errorf("unsupported image format %q", format)
	}
	return errors.Wrapf(err, "failed to encode %s", format)
}
