package desktop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/motion"
)

// X11 wheel buttons.
const (
	wheelUp   = 4
	wheelDown = 5
)

// Options configures the xdotool backend.
type Options struct {
	// WindowTitle is matched as a substring of the window name.
	WindowTitle string
	// TopOffset is cut from the top of the window to skip the title bar
	// and the renderer's menu strip.
	TopOffset int
	// ActivateDelay is waited after raising the window.
	ActivateDelay time.Duration
	// PID returns the renderer's process id, or 0 when it is not running.
	// When set, windows owned by that process win over a title-only match
	// so concurrent sessions each find their own renderer.
	PID func() int
}

// Xdotool implements motion.Actuator and motion.Locator.
type Xdotool struct {
	runner Runner
	opts   Options
	logger logging.Logger
}

// New creates an xdotool backend. A nil runner uses the xdotool binary on PATH.
func New(runner Runner, opts Options, logger logging.Logger) *Xdotool {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Xdotool{runner: runner, opts: opts, logger: logger}
}

// MoveTo implements motion.Actuator.
func (x *Xdotool) MoveTo(ctx context.Context, px, py int) error {
	_, err := x.runner.Run(ctx, "mousemove", strconv.Itoa(px), strconv.Itoa(py))
	return err
}

// Position implements motion.Actuator.
func (x *Xdotool) Position(ctx context.Context) (motion.Point, error) {
	out, err := x.runner.Run(ctx, "getmouselocation", "--shell")
	if err != nil {
		return motion.Point{}, err
	}
	vars := parseShellVars(out)
	px, errX := strconv.Atoi(vars["X"])
	py, errY := strconv.Atoi(vars["Y"])
	if err := errors.Join(errX, errY); err != nil {
		return motion.Point{}, fmt.Errorf("parse pointer location %q: %w", strings.TrimSpace(out), err)
	}
	return motion.Point{X: px, Y: py}, nil
}

// Press implements motion.Actuator.
func (x *Xdotool) Press(ctx context.Context, b motion.Button) error {
	_, err := x.runner.Run(ctx, "mousedown", strconv.Itoa(int(b)))
	return err
}

// Release implements motion.Actuator.
func (x *Xdotool) Release(ctx context.Context, b motion.Button) error {
	_, err := x.runner.Run(ctx, "mouseup", strconv.Itoa(int(b)))
	return err
}

// Scroll implements motion.Actuator with wheel clicks.
func (x *Xdotool) Scroll(ctx context.Context, amount int) error {
	if amount == 0 {
		return nil
	}
	button := wheelUp
	if amount < 0 {
		button, amount = wheelDown, -amount
	}
	_, err := x.runner.Run(ctx, "click", "--repeat", strconv.Itoa(amount), "--delay", "0", strconv.Itoa(button))
	return err
}

// Locate implements motion.Locator. It raises the renderer window found by
// WindowID.
func (x *Xdotool) Locate(ctx context.Context) (motion.Surface, error) {
	id, err := x.WindowID(ctx)
	if err != nil {
		return motion.Surface{}, err
	}

	if _, err := x.runner.Run(ctx, "windowactivate", id); err != nil {
		x.logger.Warn("Could not raise renderer window", "window", id, "error", err)
	} else if x.opts.ActivateDelay > 0 {
		time.Sleep(x.opts.ActivateDelay)
	}

	out, err := x.runner.Run(ctx, "getwindowgeometry", "--shell", id)
	if err != nil {
		return motion.Surface{}, err
	}
	rect, err := parseGeometry(out)
	if err != nil {
		return motion.Surface{}, err
	}

	offset := min(x.opts.TopOffset, rect.Height)
	rect.Y += offset
	rect.Height -= offset
	return motion.Surface{ID: id, Rect: rect}, nil
}

// WindowID returns the renderer's window: the first visible window owned by
// the renderer process, or the first one matching the title when the
// process has none (a launcher script may have spawned the real renderer).
func (x *Xdotool) WindowID(ctx context.Context) (string, error) {
	if x.opts.PID != nil {
		if pid := x.opts.PID(); pid > 0 {
			args := []string{"search", "--onlyvisible", "--pid", strconv.Itoa(pid)}
			if x.opts.WindowTitle != "" {
				args = append(args, "--name", x.opts.WindowTitle)
			}
			if id, err := x.search(ctx, args...); err == nil {
				return id, nil
			}
			x.logger.Debug("No window owned by renderer, matching by title", "pid", pid, "title", x.opts.WindowTitle)
		}
	}
	return x.search(ctx, "search", "--onlyvisible", "--name", x.opts.WindowTitle)
}

func (x *Xdotool) search(ctx context.Context, args ...string) (string, error) {
	out, err := x.runner.Run(ctx, args...)
	if err != nil {
		// xdotool search exits 1 when nothing matches
		return "", fmt.Errorf("%w: %q: %w", motion.ErrSurfaceNotFound, x.opts.WindowTitle, err)
	}
	for _, line := range strings.Split(out, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", motion.ErrSurfaceNotFound, x.opts.WindowTitle)
}

// parseShellVars parses KEY=value lines as printed by --shell.
func parseShellVars(out string) map[string]string {
	vars := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			vars[key] = value
		}
	}
	return vars
}

func parseGeometry(out string) (motion.Rect, error) {
	vars := parseShellVars(out)
	var r motion.Rect
	var errs []error
	for key, dst := range map[string]*int{"X": &r.X, "Y": &r.Y, "WIDTH": &r.Width, "HEIGHT": &r.Height} {
		v, err := strconv.Atoi(vars[key])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = v
	}
	if err := errors.Join(errs...); err != nil {
		return motion.Rect{}, fmt.Errorf("parse window geometry: %w", err)
	}
	return r, nil
}
