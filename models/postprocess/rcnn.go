package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
)

const (
	// DefaultConfThreshold is the minimum class score kept before NMS.
	DefaultConfThreshold = 0.05
	// DefaultNMSThreshold is the per-class suppression overlap.
	DefaultNMSThreshold = 0.3
)

// RCNNHead holds the raw second-stage outputs of a Faster R-CNN network for
// one image.
type RCNNHead struct {
	// BoxDeltas is (NumBoxes, NumClasses*4): dx, dy, dw, dh per class.
	BoxDeltas []float32
	// Scores is (NumBoxes, NumClasses) softmax probabilities; class 0 is
	// background.
	Scores []float32
	// RoIs is (NumBoxes, 5): batch index, x1, y1, x2, y2 in resized-image
	// pixels.
	RoIs []float32
	// NumBoxes is the number of proposals.
	NumBoxes int
	// NumClasses includes the background class.
	NumClasses int
}

// Validate checks the buffer sizes against NumBoxes and NumClasses.
func (h RCNNHead) Validate() error {
	if h.NumBoxes < 0 || h.NumClasses < 0 {
		return errors.Errorf("negative head dimensions (%d, %d)", h.NumBoxes, h.NumClasses)
	}
	if got, want := len(h.BoxDeltas), h.NumBoxes*h.NumClasses*4; got != want {
		return errors.Errorf("box deltas have %d values, want %d", got, want)
	}
	if got, want := len(h.Scores), h.NumBoxes*h.NumClasses; got != want {
		return errors.Errorf("scores have %d values, want %d", got, want)
	}
	if got, want := len(h.RoIs), h.NumBoxes*5; got != want {
		return errors.Errorf("rois have %d values, want %d", got, want)
	}
	return nil
}

// RCNNConfig holds the thresholds applied while decoding. NumWorkers > 1
// computes each class's NMS overlaps in parallel.
type RCNNConfig struct {
	ConfThreshold float32 `json:"confThreshold" yaml:"confThreshold"`
	NMSThreshold  float32 `json:"nmsThreshold"  yaml:"nmsThreshold"`
	NumWorkers    int     `json:"numWorkers"    yaml:"numWorkers"`
}

// DefaultRCNNConfig returns the usual test-time thresholds.
func DefaultRCNNConfig() RCNNConfig {
	return RCNNConfig{ConfThreshold: DefaultConfThreshold, NMSThreshold: DefaultNMSThreshold}
}

// DecodeRCNN turns raw head outputs into detections in original-image
// coordinates.
//
// Order of operations:
//  1. Apply each class's deltas to its RoI and clip to the resized image.
//  2. Divide coordinates by info.Factor.
//  3. For every foreground class c >= 1 keep boxes with score >= ConfThreshold,
//     sort by score and run greedy NMS with inclusive-pixel IoU.
//  4. Emit survivors with class id c-1, grouped by class in ascending order.
//
// Arguments:
//   - head: The raw outputs.
//   - info: The preprocessing metadata for the image.
//   - cfg: Decoding thresholds and NMS parallelism.
//
// Returns:
//   - []Result: The detections; empty when nothing passes.
//   - error: If the head buffers are inconsistent or the factor is not positive.
func DecodeRCNN(head RCNNHead, info preprocess.Info, cfg RCNNConfig) ([]Result, error) {
	if err := head.Validate(); err != nil {
		return nil, err
	}
	if head.NumBoxes == 0 {
		return nil, nil
	}
	if info.Factor <= 0 {
		return nil, errors.Errorf("image factor must be positive, got %v", info.Factor)
	}

	boxes := transformInvClip(head, info.Width, info.Height)
	inv := 1 / info.Factor
	for i := range boxes {
		boxes[i] = boxes[i].Scale(inv)
	}

	nms := &NMSConfig{IoUThreshold: cfg.NMSThreshold, Inclusive: true, NumWorkers: cfg.NumWorkers}

	var results []Result
	for c := 1; c < head.NumClasses; c++ {
		var candidates []Result
		for i := 0; i < head.NumBoxes; i++ {
			score := head.Scores[i*head.NumClasses+c]
			if score < cfg.ConfThreshold {
				continue
			}
			candidates = append(candidates, Result{
				Box:   boxes[i*head.NumClasses+c],
				Score: score,
				Class: c - 1,
			})
		}
		if len(candidates) == 0 {
			continue
		}
		SortByScore(candidates)
		results = append(results, ApplyNMS(candidates, nms)...)
	}

	return results, nil
}

// transformInvClip applies the regression deltas to every (RoI, class) pair
// and clips the boxes to [0, width-1] x [0, height-1]. The result is indexed
// by box*NumClasses + class.
func transformInvClip(head RCNNHead, width, height float32) []images.Rect {
	maxW, maxH := width-1, height-1
	out := make([]images.Rect, head.NumBoxes*head.NumClasses)

	for i := 0; i < head.NumBoxes; i++ {
		roi := head.RoIs[i*5 : i*5+5]
		w := roi[3] - roi[1] + 1
		h := roi[4] - roi[2] + 1
		cx := roi[1] + 0.5*w
		cy := roi[2] + 0.5*h

		for j := 0; j < head.NumClasses; j++ {
			d := head.BoxDeltas[(i*head.NumClasses+j)*4:]
			pcx := d[0]*w + cx
			pcy := d[1]*h + cy
			pw := math32.Exp(d[2]) * w
			ph := math32.Exp(d[3]) * h

			out[i*head.NumClasses+j] = images.Rect{
				X1: clamp(pcx-0.5*pw, maxW),
				Y1: clamp(pcy-0.5*ph, maxH),
				X2: clamp(pcx+0.5*pw, maxW),
				Y2: clamp(pcy+0.5*ph, maxH),
			}
		}
	}
	return out
}

func clamp(v, hi float32) float32 {
	return math32.Max(0, math32.Min(v, hi))
}
