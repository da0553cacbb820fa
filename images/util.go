package images

import (
	"crypto/md5"
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FromMat copies an 8-bit, 3-channel BGR matrix into a raster.
//
// Arguments:
// - mat: A CV_8UC3 matrix, as returned by gocv.IMRead or VideoCapture.Read.
//
// Returns:
// - *Raster: A copy of the pixel data.
// - error: If the matrix is empty or has a different type.
func FromMat(mat gocv.Mat) (*Raster, error) {
	if mat.Empty() {
		return nil, ErrEmptyImage
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Errorf("unsupported mat type %v, want CV_8UC3", mat.Type())
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mat data")
	}

	r := NewRaster(mat.Cols(), mat.Rows())
	copy(r.Pix, data)
	return r, nil
}

// Mat copies the raster into a new CV_8UC3 matrix. The caller must Close it.
func (r *Raster) Mat() (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(r.Height, r.Width, gocv.MatTypeCV8UC3, r.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to build mat from raster")
	}
	return mat, nil
}

// Checksum generates a deterministic checksum of the pixel data and shape.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for a raster without pixels.
//
// Example:
//
// ```go
//
//	fmt.Printf("Frame checksum: %s\n", raster.Checksum())
//
// ```
func (r *Raster) Checksum() string {
	if r.Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%d:", r.Width, r.Height)
	hash.Write(r.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
