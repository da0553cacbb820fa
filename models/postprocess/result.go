// Package postprocess - Postprocessing utilities for detector outputs.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-frcnn/images"
)

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// Row returns the result as a detection row
// [class_id, score, x1, y1, x2, y2].
func (r Result) Row() [6]float32 {
	return [6]float32{float32(r.Class), r.Score, r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2}
}

// SortByScore orders results by descending score. Ties keep their input order.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// Above returns the results scoring at least threshold, in order.
func Above(results []Result, threshold float32) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Flatten packs results into a row-major (N, 6) buffer and its shape. When
// there are no results it returns the single-element placeholder [0] with
// shape (1), which callers treat as "nothing detected" because it is not
// rank 2.
func Flatten(results []Result) ([]float32, []int) {
	if len(results) == 0 {
		return []float32{0}, []int{1}
	}
	data := make([]float32, 0, len(results)*6)
	for _, r := range results {
		row := r.Row()
		data = append(data, row[:]...)
	}
	return data, []int{len(results), 6}
}
