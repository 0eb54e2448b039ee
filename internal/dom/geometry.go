package dom

// Rect is an axis-aligned box in CSS pixels, viewport-relative.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the covered area; zero for degenerate rects.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the rect has no visible extent.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersects reports whether any part of r overlaps o.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Quadrant names the region of the viewport a point falls in. Used as a
// coarse positional signal that survives layout drift.
type Quadrant string

const (
	QuadrantTopLeft     Quadrant = "top-left"
	QuadrantTopRight    Quadrant = "top-right"
	QuadrantBottomLeft  Quadrant = "bottom-left"
	QuadrantBottomRight Quadrant = "bottom-right"
	QuadrantUnknown     Quadrant = ""
)

// QuadrantOf classifies the center of target within the viewport.
func QuadrantOf(target, viewport Rect) Quadrant {
	if target.Empty() || viewport.Empty() {
		return QuadrantUnknown
	}
	cx, cy := target.Center()
	mx, my := viewport.Center()
	switch {
	case cx < mx && cy < my:
		return QuadrantTopLeft
	case cx >= mx && cy < my:
		return QuadrantTopRight
	case cx < mx:
		return QuadrantBottomLeft
	default:
		return QuadrantBottomRight
	}
}
