// Package geometry holds the pure 2D math used by the compositing pipeline:
// cover-scale computation, center-relative clip placement, and conversions
// between a frame's local coordinate space and canvas space.
package geometry

import "math"

// Point is a 2D point in either canvas or frame-local coordinates.
type Point struct {
	X float64
	Y float64
}

// CoverScale returns the minimum uniform scale at which an image of natural
// size (w, h) fully covers a frame of diameter d in both axes. One axis may
// overflow; neither may fall short.
func CoverScale(d, w, h float64) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return math.Max(d/w, d/h)
}

// ClampToCover enforces the cover-scale floor: a scale below the cover scale
// would expose the frame background through gaps, so it is raised to the
// floor; anything at or above passes through unchanged.
func ClampToCover(scale, d, w, h float64) float64 {
	cover := CoverScale(d, w, h)
	if scale < cover {
		return cover
	}
	return scale
}

// ClipOffset converts an image pan (offsetX, offsetY) into the clip window
// offset relative to the host's center. Panning the image right by offsetX
// moves the visible window left by the same amount in the image's local
// frame; the two are inverse operations on the same delta.
func ClipOffset(offsetX, offsetY float64) (float64, float64) {
	return -offsetX, -offsetY
}

// FrameCenter returns the canvas-space center of a frame given its top-left
// corner and rendered (post-scale) dimensions.
func FrameCenter(left, top, width, height float64) Point {
	return Point{
		X: left + width/2,
		Y: top + height/2,
	}
}

// ToFrameLocal converts a canvas-space point into coordinates centered on c.
func ToFrameLocal(p, c Point) Point {
	return Point{X: p.X - c.X, Y: p.Y - c.Y}
}

// ToCanvas converts a frame-local point back into canvas space.
func ToCanvas(p, c Point) Point {
	return Point{X: p.X + c.X, Y: p.Y + c.Y}
}
