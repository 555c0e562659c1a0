package motion

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/metrics"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the controller logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithTuning sets the initial tuning.
func WithTuning(t Tuning) Option {
	return func(c *Controller) { c.tuning = t.normalized() }
}

// Controller runs at most one continuous motion worker at a time.
type Controller struct {
	actuator Actuator
	locator  Locator
	clock    clockwork.Clock
	logger   logging.Logger

	tuningMu sync.RWMutex
	tuning   Tuning

	// mu serializes worker hand-over: a new worker is only launched after
	// the previous one has been cancelled and joined.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates an idle controller.
func NewController(actuator Actuator, locator Locator, opts ...Option) *Controller {
	c := &Controller{
		actuator: actuator,
		locator:  locator,
		clock:    clockwork.NewRealClock(),
		logger:   logging.GetLogger("motion"),
		tuning:   DefaultTuning(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTuning replaces the tuning. A running drag keeps its old values until
// its next command.
func (c *Controller) SetTuning(t Tuning) {
	c.tuningMu.Lock()
	c.tuning = t.normalized()
	c.tuningMu.Unlock()
}

// Tuning returns the current tuning.
func (c *Controller) Tuning() Tuning {
	c.tuningMu.RLock()
	defer c.tuningMu.RUnlock()
	return c.tuning
}

// StartRotate drags with the left button until stopped. distance and
// duration describe one step and set the drag speed.
func (c *Controller) StartRotate(dir Direction, distance int, duration time.Duration) error {
	return c.startDrag(ActionRotate, dir, ButtonLeft, distance, duration)
}

// StartPan drags with the middle button until stopped.
func (c *Controller) StartPan(dir Direction, distance int, duration time.Duration) error {
	return c.startDrag(ActionPan, dir, ButtonMiddle, distance, duration)
}

// StartZoom scrolls amount ticks every delay until stopped.
func (c *Controller) StartZoom(dir Direction, amount int, delay time.Duration) error {
	if err := validDirection(ActionZoom, dir); err != nil {
		return err
	}
	amount = absInt(amount)
	if dir == DirectionOut {
		amount = -amount
	}
	c.launch(ActionZoom, dir, func(ctx context.Context) {
		c.zoom(ctx, amount, delay)
	})
	return nil
}

func (c *Controller) startDrag(action Action, dir Direction, button Button, distance int, duration time.Duration) error {
	if err := validDirection(action, dir); err != nil {
		return err
	}
	c.launch(action, dir, func(ctx context.Context) {
		c.drag(ctx, action, dir, button, distance, duration)
	})
	return nil
}

// Stop cancels the running worker and waits until it has released its
// button. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Active reports whether a worker is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Controller) launch(action Action, dir Direction, work func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	go func() {
		defer close(done)
		metrics.MotionWorkerStarted()
		defer metrics.MotionWorkerStopped()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Motion worker panicked", "action", action, "direction", dir, "panic", r)
			}
		}()

		c.logger.Debug("Motion started", "action", action, "direction", dir)
		work(ctx)
		c.logger.Debug("Motion finished", "action", action, "direction", dir)
	}()
}

func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

// drag runs the press-drag-release loop. Actuator calls use a context that
// is not cancelled with ctx so a stop never cuts an input event in half.
func (c *Controller) drag(ctx context.Context, action Action, dir Direction, button Button, distance int, duration time.Duration) {
	act := context.WithoutCancel(ctx)

	surface, err := c.locator.Locate(act)
	if err != nil {
		c.logger.Warn("Motion ignored, target surface unavailable", "action", action, "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	t := c.Tuning()
	s := planStroke(surface.Rect, dir, distance, duration, t)

	if err := c.actuator.MoveTo(act, s.start.X, s.start.Y); err != nil {
		c.logger.Warn("Failed to move pointer to drag start", "error", err)
		return
	}
	if err := c.actuator.Press(act, button); err != nil {
		c.logger.Warn("Failed to press button", "button", button, "error", err)
		return
	}
	pressed := true
	defer func() {
		if !pressed {
			return
		}
		if err := c.actuator.Release(act, button); err != nil {
			c.logger.Error("Failed to release button", "button", button, "error", err)
		}
	}()
	c.clock.Sleep(t.SettleTime)

	pos := s.start
	if p, err := c.actuator.Position(act); err == nil {
		pos = s.bounds.Clamp(p)
	}

	ticker := c.clock.NewTicker(t.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.brake(act, ticker, &s, pos, t)
			return
		case <-ticker.Chan():
		}

		dx, dy := s.advance(t.Tick)
		if dx == 0 && dy == 0 {
			continue
		}
		pos = s.bounds.Clamp(Point{X: pos.X + dx, Y: pos.Y + dy})
		if err := c.actuator.MoveTo(act, pos.X, pos.Y); err != nil {
			c.logger.Warn("Pointer move failed, ending drag", "error", err)
			return
		}
		if !s.needsReset(pos) {
			continue
		}

		c.brake(act, ticker, &s, pos, t)
		if err := c.actuator.Release(act, button); err != nil {
			c.logger.Warn("Release during reset failed", "button", button, "error", err)
			return
		}
		pressed = false
		metrics.RecordMotionReset(string(action))
		if ctx.Err() != nil {
			return
		}

		c.clock.Sleep(t.SettleTime)
		if err := c.actuator.MoveTo(act, s.start.X, s.start.Y); err != nil {
			c.logger.Warn("Failed to return pointer to drag start", "error", err)
			return
		}
		c.clock.Sleep(t.SettleTime)
		if ctx.Err() != nil {
			return
		}
		if err := c.actuator.Press(act, button); err != nil {
			c.logger.Warn("Failed to press button after reset", "button", button, "error", err)
			return
		}
		pressed = true
		pos = s.start
		s.restart()
	}
}

// brake runs the deceleration ramp from pos, one move per tick.
func (c *Controller) brake(ctx context.Context, ticker clockwork.Ticker, s *stroke, pos Point, t Tuning) Point {
	for _, factor := range decelFactors(t.DecelTime, t.Tick) {
		<-ticker.Chan()
		dx, dy := s.brake(factor, t.Tick)
		if dx == 0 && dy == 0 {
			continue
		}
		pos = s.bounds.Clamp(Point{X: pos.X + dx, Y: pos.Y + dy})
		if err := c.actuator.MoveTo(ctx, pos.X, pos.Y); err != nil {
			c.logger.Warn("Pointer move failed while braking", "error", err)
			break
		}
	}
	return pos
}

func (c *Controller) zoom(ctx context.Context, amount int, delay time.Duration) {
	act := context.WithoutCancel(ctx)

	surface, err := c.locator.Locate(act)
	if err != nil {
		c.logger.Warn("Zoom ignored, target surface unavailable", "error", err)
		return
	}
	center := surface.Rect.Center()
	if err := c.actuator.MoveTo(act, center.X, center.Y); err != nil {
		c.logger.Warn("Failed to move pointer to surface center", "error", err)
		return
	}

	for ctx.Err() == nil {
		if err := c.actuator.Scroll(act, amount); err != nil {
			c.logger.Warn("Scroll failed, ending zoom", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(delay):
		}
	}
}
