// Package geometry holds the pixel-space primitives used to compare
// detections within a single frame: boxes, centers, overlap and distance.
//
// Everything here is a pure function over finite inputs. Nothing fails and
// nothing allocates beyond the returned values.
package geometry

import "math"

// Point is a location in frame-pixel coordinates. Y grows downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned box in frame pixels with X1<=X2 and Y1<=Y2.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBox builds a box from any two corners, ordering the coordinates.
func NewBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns Width*Height.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// Valid reports whether the box is ordered and has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Center returns the midpoint of the box.
func Center(b BoundingBox) Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// IoU returns the intersection-over-union of a and b in [0, 1].
// Boxes that do not overlap (including boxes that only touch along an
// edge) return 0 without computing the ratio.
func IoU(a, b BoundingBox) float64 {
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
