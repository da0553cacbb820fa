package postprocess

import (
	"github.com/nvr-ai/go-frcnn/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap above which the lower-scored box is suppressed.
	ClassAware   bool    // If true, suppress only within same class.
	Inclusive    bool    // If true, box far edges are inclusive pixel indices.
	NumWorkers   int     // Goroutines used for IoU rows; <= 1 runs serially.
}

// ApplyNMS filters overlapping detections using greedy Non-Maximum
// Suppression. When config.NumWorkers > 1 the IoU of each kept anchor against
// the remaining candidates is computed in parallel; the result is identical to
// ApplyGreedyNMS.
//
// Arguments:
//   - detections: Sorted slice of detections (highest score first).
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	if config.NumWorkers <= 1 {
		return ApplyGreedyNMS(detections, config)
	}

	n := len(detections)
	if n == 0 {
		return nil
	}

	iou := overlapFunc(config)
	used := make([]bool, n)
	filtered := make([]Result, 0, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		// Each worker owns a disjoint slice of used, so no locking is needed.
		rest := n - i - 1
		images.Parallel(rest, func(start, end int) {
			for k := start; k < end; k++ {
				j := i + 1 + k
				if used[j] {
					continue
				}
				if config.ClassAware && anchor.Class != detections[j].Class {
					continue
				}
				if iou(anchor.Box, detections[j].Box) > config.IoUThreshold {
					used[j] = true
				}
			}
		})
	}

	return filtered
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration; NumWorkers is ignored.
//
// Returns:
//   - Filtered slice of detections.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	iou := overlapFunc(config)
	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if iou(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

func overlapFunc(config *NMSConfig) func(a, b images.Rect) float32 {
	if config.Inclusive {
		return images.CalculateIoUInclusive
	}
	return images.CalculateIoU
}
