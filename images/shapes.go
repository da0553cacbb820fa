package images

import "image"

// Rect is an axis-aligned box in corner form, in pixel coordinates.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns X2 - X1.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the box area, or 0 for degenerate boxes.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Scale multiplies every coordinate by f.
func (r Rect) Scale(f float32) Rect {
	return Rect{X1: r.X1 * f, Y1: r.Y1 * f, X2: r.X2 * f, Y2: r.Y2 * f}
}

// Clip restricts the box to [0, maxX] x [0, maxY].
func (r Rect) Clip(maxX, maxY float32) Rect {
	clip := func(v, hi float32) float32 { return max(0, min(v, hi)) }
	return Rect{X1: clip(r.X1, maxX), Y1: clip(r.Y1, maxY), X2: clip(r.X2, maxX), Y2: clip(r.Y2, maxY)}
}

// Image rounds the box to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	round := func(v float32) int {
		if v < 0 {
			return int(v - 0.5)
		}
		return int(v + 0.5)
	}
	return image.Rect(round(r.X1), round(r.Y1), round(r.X2), round(r.Y2))
}

// CalculateIoU returns the Intersection over Union of two boxes whose far
// edges are exclusive:
//
//	IoU = Area of Intersection / Area of Union
//
// 1.0 means identical boxes, 0.0 means no overlap.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	return iou(r, o, 0)
}

// CalculateIoUInclusive returns the IoU of two boxes whose far edges are
// inclusive pixel indices, so a box from x1 to x2 is x2-x1+1 pixels wide.
// This is the convention used by Faster R-CNN proposals and its NMS.
func CalculateIoUInclusive(r, o Rect) float32 {
	return iou(r, o, 1)
}

func iou(r, o Rect, offset float32) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1 + offset
	interH := iy2 - iy1 + offset
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	areaR := (r.X2 - r.X1 + offset) * (r.Y2 - r.Y1 + offset)
	areaO := (o.X2 - o.X1 + offset) * (o.Y2 - o.Y1 + offset)
	unionArea := areaR + areaO - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
