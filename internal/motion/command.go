package motion

import (
	"errors"
	"fmt"
)

// Action is the camera operation a command drives.
type Action string

// Actions.
const (
	ActionRotate Action = "rotate"
	ActionPan    Action = "pan"
	ActionZoom   Action = "zoom"
)

// Direction of a motion command.
type Direction string

// Directions.
const (
	DirectionUp               Direction = "up"
	DirectionDown             Direction = "down"
	DirectionLeft             Direction = "left"
	DirectionRight            Direction = "right"
	DirectionClockwise        Direction = "clockwise"
	DirectionCounterClockwise Direction = "counter_clockwise"
	DirectionIn               Direction = "in"
	DirectionOut              Direction = "out"
)

// Mode starts or stops continuous motion.
type Mode string

// Modes.
const (
	ModeStart Mode = "start"
	ModeStop  Mode = "stop"
)

// Button is a simulated pointer button.
type Button int

// Buttons, numbered as X11 numbers them.
const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return fmt.Sprintf("button%d", int(b))
	}
}

// Validation errors.
var (
	ErrInvalidAction    = errors.New("invalid motion action")
	ErrInvalidDirection = errors.New("invalid direction for action")
	ErrInvalidMode      = errors.New("invalid motion mode")
)

// Command is one control request.
type Command struct {
	Action    Action
	Direction Direction
	Mode      Mode
}

// Validate checks that the direction belongs to the action. Stop commands
// do not need a direction.
func (c Command) Validate() error {
	switch c.Mode {
	case ModeStart, ModeStop:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Action {
	case ActionRotate, ActionPan, ActionZoom:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, c.Action)
	}
	if c.Mode == ModeStop {
		return nil
	}
	return validDirection(c.Action, c.Direction)
}

func validDirection(action Action, dir Direction) error {
	switch action {
	case ActionZoom:
		if dir == DirectionIn || dir == DirectionOut {
			return nil
		}
	default:
		if _, _, ok := unitVector(dir); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q", ErrInvalidDirection, action, dir)
}

// unitVector maps a drag direction to a single-axis unit vector. Clockwise
// drags right, counter-clockwise drags left.
func unitVector(dir Direction) (ux, uy int, ok bool) {
	switch dir {
	case DirectionUp:
		return 0, -1, true
	case DirectionDown:
		return 0, 1, true
	case DirectionLeft, DirectionCounterClockwise:
		return -1, 0, true
	case DirectionRight, DirectionClockwise:
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

func isRotation(dir Direction) bool {
	return dir == DirectionClockwise || dir == DirectionCounterClockwise
}
