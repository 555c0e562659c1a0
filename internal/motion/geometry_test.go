package motion

import (
	"errors"
	"testing"
)

func TestRectInset(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 80}
	got := r.Inset(30)
	want := Rect{X: 40, Y: 50, Width: 40, Height: 20}
	if got != want {
		t.Errorf("Inset = %+v, want %+v", got, want)
	}

	small := Rect{X: 0, Y: 0, Width: 40, Height: 100}.Inset(30)
	if small.Width != 0 || small.X != 20 {
		t.Errorf("collapsed inset = %+v, want zero width at x=20", small)
	}
}

func TestRectClamp(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 50}
	tests := []struct{ in, want Point }{
		{Point{50, 25}, Point{50, 25}},
		{Point{-5, 25}, Point{0, 25}},
		{Point{150, 80}, Point{100, 50}},
		{Point{10, -1}, Point{10, 0}},
	}
	for _, tt := range tests {
		if got := r.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		cmd  Command
		want error
	}{
		{Command{ActionRotate, DirectionLeft, ModeStart}, nil},
		{Command{ActionRotate, DirectionClockwise, ModeStart}, nil},
		{Command{ActionPan, DirectionUp, ModeStart}, nil},
		{Command{ActionZoom, DirectionIn, ModeStart}, nil},
		{Command{ActionZoom, DirectionOut, ModeStart}, nil},
		{Command{ActionZoom, DirectionLeft, ModeStart}, ErrInvalidDirection},
		{Command{ActionRotate, DirectionIn, ModeStart}, ErrInvalidDirection},
		{Command{ActionPan, "", ModeStart}, ErrInvalidDirection},
		{Command{ActionPan, "", ModeStop}, nil},
		{Command{"spin", DirectionLeft, ModeStart}, ErrInvalidAction},
		{Command{ActionRotate, DirectionLeft, "pause"}, ErrInvalidMode},
	}
	for _, tt := range tests {
		err := tt.cmd.Validate()
		if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
			t.Errorf("Validate(%+v) = %v, want %v", tt.cmd, err, tt.want)
		}
	}
}

func TestButtonString(t *testing.T) {
	if ButtonLeft.String() != "left" || ButtonMiddle.String() != "middle" || ButtonRight.String() != "right" || Button(9).String() != "button9" {
		t.Error("unexpected button names")
	}
}
