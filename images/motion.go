package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MotionConfig configures a MotionSegmenter.
type MotionConfig struct {
	// MinimumArea is the smallest contour area, in pixels, counted as motion.
	MinimumArea float64 `json:"minimumArea" yaml:"minimumArea"`
	// Threshold binarizes the foreground mask.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// KernelSize is the side of the dilation kernel.
	KernelSize int `json:"kernelSize" yaml:"kernelSize"`
}

// DefaultMotionConfig returns settings suited to a 640x480 webcam.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{MinimumArea: 3000, Threshold: 25, KernelSize: 3}
}

// MotionSegmenter finds moving regions in a video stream, so detection only
// runs on frames where something changed.
//
// The pipeline is MOG2 background subtraction, a binary threshold, dilation
// and external contour extraction. It is stateful across frames and must be
// closed.
type MotionSegmenter struct {
	config     MotionConfig
	delta      gocv.Mat
	threshold  gocv.Mat
	kernel     gocv.Mat
	background gocv.BackgroundSubtractorMOG2
}

// NewMotionSegmenter creates a segmenter with an empty background model.
func NewMotionSegmenter(config MotionConfig) *MotionSegmenter {
	if config.KernelSize <= 0 {
		config.KernelSize = 3
	}
	return &MotionSegmenter{
		config:     config,
		delta:      gocv.NewMat(),
		threshold:  gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.KernelSize, config.KernelSize)),
		background: gocv.NewBackgroundSubtractorMOG2(),
	}
}

// Segment updates the background model with frame and returns the bounding
// boxes of moving regions at least MinimumArea in size.
//
// Arguments:
//   - frame: A BGR frame.
//
// Returns:
//   - []image.Rectangle: The moving regions, empty when the scene is still.
//   - error: If an OpenCV step fails.
func (m *MotionSegmenter) Segment(frame gocv.Mat) ([]image.Rectangle, error) {
	if frame.Empty() {
		return nil, ErrEmptyImage
	}
	if err := m.background.Apply(frame, &m.delta); err != nil {
		return nil, errors.Wrap(err, "background subtraction failed")
	}
	gocv.Threshold(m.delta, &m.threshold, m.config.Threshold, 255, gocv.ThresholdBinary)
	if err := gocv.Dilate(m.threshold, &m.threshold, m.kernel); err != nil {
		return nil, errors.Wrap(err, "dilation failed")
	}

	contours := gocv.FindContours(m.threshold, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) >= m.config.MinimumArea {
			regions = append(regions, gocv.BoundingRect(c))
		}
	}
	return regions, nil
}

// Close releases the native resources.
func (m *MotionSegmenter) Close() {
	m.delta.Close()
	m.threshold.Close()
	m.kernel.Close()
	m.background.Close()
}
