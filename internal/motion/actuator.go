package motion

import (
	"context"
	"errors"
)

// ErrSurfaceNotFound is returned by a Locator when the target window is missing.
var ErrSurfaceNotFound = errors.New("target surface not found")

// Actuator emits simulated pointer input. Calls are made from a single
// worker goroutine and are never interrupted mid-flight.
type Actuator interface {
	MoveTo(ctx context.Context, x, y int) error
	Position(ctx context.Context) (Point, error)
	Press(ctx context.Context, b Button) error
	Release(ctx context.Context, b Button) error
	// Scroll emits amount wheel ticks; positive scrolls up (zoom in).
	Scroll(ctx context.Context, amount int) error
}

// Surface is the located input target.
type Surface struct {
	ID   string
	Rect Rect
}

// Locator finds the surface motion is applied to, bringing it to the
// foreground when the platform needs that.
type Locator interface {
	Locate(ctx context.Context) (Surface, error)
}
