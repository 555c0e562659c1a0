package motion

// Point is a screen coordinate.
type Point struct {
	X, Y int
}

// Rect is a screen rectangle. The right and bottom edges are inclusive,
// matching how window managers report geometry to pointer tools.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Right returns the x coordinate of the right edge.
// It is one past the last pixel column of a window rect.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Center returns the midpoint, rounded toward the top-left.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Inset shrinks r by margin on every side. A rectangle too small for the
// margin collapses onto its center line.
func (r Rect) Inset(margin int) Rect {
	c := r.Center()
	out := Rect{X: r.X + margin, Y: r.Y + margin, Width: r.Width - 2*margin, Height: r.Height - 2*margin}
	if out.Width < 0 {
		out.X, out.Width = c.X, 0
	}
	if out.Height < 0 {
		out.Y, out.Height = c.Y, 0
	}
	return out
}

// Clamp returns the point of r nearest to p.
func (r Rect) Clamp(p Point) Point {
	return Point{X: clamp(p.X, r.X, r.Right()), Y: clamp(p.Y, r.Y, r.Bottom())}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
