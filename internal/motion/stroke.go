package motion

import (
	"math"
	"time"
)

// easeInOutQuad is the quadratic ease-in-out curve on [0, 1].
func easeInOutQuad(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// stroke is the state of one press-drag-release cycle. It is owned by a
// single worker goroutine.
type stroke struct {
	bounds    Rect // surface inset by the edge margin
	start     Point
	ux, uy    int
	rotation  bool
	maxTravel int
	step      int
	maxSpeed  float64 // pixels per second

	accel, decel time.Duration
	resetRatio   float64

	elapsed      time.Duration
	factor       float64 // ramp factor of the last drag tick
	fracX, fracY float64
}

// planStroke picks the start point on the trailing edge so the drag has the
// whole surface ahead of it. Rotations keep the pointer on the horizontal
// center line.
func planStroke(surface Rect, dir Direction, distance int, duration time.Duration, t Tuning) stroke {
	ux, uy, _ := unitVector(dir)
	bounds := surface.Inset(t.EdgeMargin)
	center := surface.Center()

	start := center
	switch {
	case ux < 0:
		start.X = bounds.Right()
	case ux > 0:
		start.X = bounds.X
	}
	switch {
	case uy < 0:
		start.Y = bounds.Bottom()
	case uy > 0:
		start.Y = bounds.Y
	}
	rotation := isRotation(dir)
	if rotation {
		start.Y = center.Y
	}
	start = bounds.Clamp(start)

	step := absInt(distance)
	baseline := math.Max(1, float64(step)/math.Max(1e-6, duration.Seconds()))

	s := stroke{
		bounds:     bounds,
		start:      start,
		ux:         ux,
		uy:         uy,
		rotation:   rotation,
		step:       step,
		maxSpeed:   baseline * t.SpeedFactor,
		accel:      t.AccelTime,
		decel:      t.DecelTime,
		resetRatio: t.ResetRatio,
	}
	s.maxTravel = max(0, s.remaining(start))
	return s
}

// advance moves the ramp clock by dt and returns the whole-pixel delta to
// apply. Fractions carry over to the next tick.
func (s *stroke) advance(dt time.Duration) (dx, dy int) {
	factor := 1.0
	if s.elapsed < s.accel {
		factor = easeInOutQuad(float64(s.elapsed) / float64(s.accel))
	}
	s.elapsed += dt
	s.factor = factor
	return s.move(s.maxSpeed * factor * dt.Seconds())
}

// brake returns the delta for one deceleration tick. The ramp is scaled by
// the speed of the last drag tick, so a stroke cancelled while still
// accelerating never speeds up on the way out.
func (s *stroke) brake(factor float64, dt time.Duration) (dx, dy int) {
	return s.move(s.maxSpeed * s.factor * factor * dt.Seconds())
}

func (s *stroke) move(px float64) (dx, dy int) {
	s.fracX += float64(s.ux) * px
	s.fracY += float64(s.uy) * px
	dx = int(math.Trunc(s.fracX))
	dy = int(math.Trunc(s.fracY))
	s.fracX -= float64(dx)
	s.fracY -= float64(dy)
	if s.rotation {
		dy = 0
	}
	return dx, dy
}

// restart clears the ramp clock and the sub-pixel accumulators.
func (s *stroke) restart() {
	s.elapsed = 0
	s.factor = 0
	s.fracX, s.fracY = 0, 0
}

// remaining is the distance from p to the leading edge along the drag axis.
func (s *stroke) remaining(p Point) int {
	switch {
	case s.ux > 0:
		return s.bounds.Right() - p.X
	case s.ux < 0:
		return p.X - s.bounds.X
	case s.uy > 0:
		return s.bounds.Bottom() - p.Y
	default:
		return p.Y - s.bounds.Y
	}
}

func (s *stroke) traveled(p Point) int {
	if s.ux != 0 {
		return absInt(p.X - s.start.X)
	}
	return absInt(p.Y - s.start.Y)
}

// needsReset reports whether the pointer is close enough to the leading
// edge that the drag must be restarted from the trailing edge.
func (s *stroke) needsReset(p Point) bool {
	if s.maxTravel > 0 && float64(s.traveled(p)) >= float64(s.maxTravel)*s.resetRatio {
		return true
	}
	return s.remaining(p) <= s.step
}

// decelFactors returns the speed factor of each tick of the braking ramp.
func decelFactors(decel, tick time.Duration) []float64 {
	var factors []float64
	for t := time.Duration(0); t < decel; t += tick {
		factors = append(factors, easeInOutQuad(1-float64(t)/float64(decel)))
	}
	return factors
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
