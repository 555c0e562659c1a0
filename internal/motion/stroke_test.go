package motion

import (
	"math"
	"testing"
	"time"
)

func TestEaseInOutQuad(t *testing.T) {
	if got := easeInOutQuad(0); got != 0 {
		t.Errorf("ease(0) = %v, want 0", got)
	}
	if got := easeInOutQuad(1); got != 1 {
		t.Errorf("ease(1) = %v, want 1", got)
	}
	if got := easeInOutQuad(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("ease(0.5) = %v, want 0.5", got)
	}
	for _, x := range []float64{0.1, 0.25, 0.4} {
		if a, b := easeInOutQuad(x), 1-easeInOutQuad(1-x); math.Abs(a-b) > 1e-9 {
			t.Errorf("curve not symmetric at %v: %v vs %v", x, a, b)
		}
	}
	if easeInOutQuad(-1) != 0 || easeInOutQuad(2) != 1 {
		t.Error("input outside [0,1] must be clamped")
	}
}

func TestPlanStrokeStartPoint(t *testing.T) {
	surface := Rect{X: 100, Y: 50, Width: 800, Height: 600}
	tuning := DefaultTuning()

	tests := []struct {
		dir       Direction
		start     Point
		maxTravel int
	}{
		{DirectionLeft, Point{870, 350}, 740},
		{DirectionRight, Point{130, 350}, 740},
		{DirectionUp, Point{500, 620}, 540},
		{DirectionDown, Point{500, 80}, 540},
		{DirectionClockwise, Point{130, 350}, 740},
		{DirectionCounterClockwise, Point{870, 350}, 740},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			s := planStroke(surface, tt.dir, 15, 50*time.Millisecond, tuning)
			if s.start != tt.start {
				t.Errorf("start = %+v, want %+v", s.start, tt.start)
			}
			if s.maxTravel != tt.maxTravel {
				t.Errorf("maxTravel = %d, want %d", s.maxTravel, tt.maxTravel)
			}
			if !surface.Inset(tuning.EdgeMargin).Contains(s.start) {
				t.Errorf("start %+v outside inset surface", s.start)
			}
		})
	}
}

func TestPlanStrokeSpeed(t *testing.T) {
	tuning := DefaultTuning()
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionRight, 15, 50*time.Millisecond, tuning)
	// 15px per 50ms is 300px/s, scaled by the speed factor
	if math.Abs(s.maxSpeed-450) > 1e-6 {
		t.Errorf("maxSpeed = %v, want 450", s.maxSpeed)
	}

	slow := planStroke(Rect{Width: 800, Height: 600}, DirectionRight, 0, 0, tuning)
	if slow.maxSpeed != 1.5 {
		t.Errorf("baseline floor: maxSpeed = %v, want 1.5", slow.maxSpeed)
	}
}

func TestStrokeAccumulatesSubPixelMotion(t *testing.T) {
	tuning := DefaultTuning()
	tuning.AccelTime = 0
	// 1px per second, 1.5px/s top speed: every tick moves 0.015px
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionRight, 1, time.Second, tuning)

	total := 0
	for range 1000 {
		dx, dy := s.advance(10 * time.Millisecond)
		if dy != 0 {
			t.Fatalf("horizontal stroke moved vertically by %d", dy)
		}
		total += dx
	}
	// 10 seconds at 1.5px/s
	if total < 14 || total > 15 {
		t.Errorf("moved %dpx, want ~15px; sub-pixel motion was dropped", total)
	}
}

func TestStrokeRampsUp(t *testing.T) {
	tuning := DefaultTuning()
	s := planStroke(Rect{Width: 2000, Height: 600}, DirectionRight, 100, 10*time.Millisecond, tuning)

	first, _ := s.advance(tuning.Tick)
	if first != 0 {
		t.Errorf("first tick moved %dpx, want 0 at the start of the ramp", first)
	}
	var deltas []int
	for range 8 {
		dx, _ := s.advance(tuning.Tick)
		deltas = append(deltas, dx)
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i] < deltas[i-1]-1 {
			t.Errorf("speed dropped during ramp: %v", deltas)
			break
		}
	}
	// 10000px/s * 1.5 * 10ms
	if last := deltas[len(deltas)-1]; last != 150 {
		t.Errorf("cruise delta = %d, want 150", last)
	}
}

func TestStrokeMovesAgainstAxis(t *testing.T) {
	tuning := DefaultTuning()
	tuning.AccelTime = 0
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionUp, 30, 50*time.Millisecond, tuning)
	dx, dy := s.advance(tuning.Tick)
	if dx != 0 || dy >= 0 {
		t.Errorf("up stroke delta = (%d, %d), want (0, <0)", dx, dy)
	}
}

func TestStrokeNeedsReset(t *testing.T) {
	tuning := DefaultTuning()
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionRight, 15, 50*time.Millisecond, tuning)
	// start x=30, leading edge x=770, max travel 740

	tests := []struct {
		name string
		x    int
		want bool
	}{
		{"at start", 30, false},
		{"half way", 400, false},
		{"just below ratio", 30 + 702, false},
		{"at ratio", 30 + 703, true},
		{"within one step of edge", 756, true},
		{"at edge", 770, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.needsReset(Point{X: tt.x, Y: 300}); got != tt.want {
				t.Errorf("needsReset(x=%d) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestStrokeRemainingConditionAlone(t *testing.T) {
	tuning := DefaultTuning()
	tuning.ResetRatio = 1
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionLeft, 50, 50*time.Millisecond, tuning)
	if !s.needsReset(Point{X: 80, Y: 300}) {
		t.Error("expected reset when remaining distance is one step")
	}
	if s.needsReset(Point{X: 81, Y: 300}) {
		t.Error("unexpected reset above one step")
	}
}

func TestStrokeRestartClearsState(t *testing.T) {
	tuning := DefaultTuning()
	s := planStroke(Rect{Width: 800, Height: 600}, DirectionRight, 1, 100*time.Millisecond, tuning)
	for range 10 {
		s.advance(tuning.Tick)
	}
	if s.elapsed == 0 {
		t.Fatal("ramp clock did not advance")
	}
	s.restart()
	if s.elapsed != 0 || s.factor != 0 || s.fracX != 0 || s.fracY != 0 {
		t.Errorf("restart left state: elapsed=%v factor=%v frac=(%v,%v)", s.elapsed, s.factor, s.fracX, s.fracY)
	}
}

func TestDecelFactors(t *testing.T) {
	f := decelFactors(50*time.Millisecond, 10*time.Millisecond)
	if len(f) != 5 {
		t.Fatalf("got %d factors, want 5", len(f))
	}
	if f[0] != 1 {
		t.Errorf("first factor = %v, want 1", f[0])
	}
	for i := 1; i < len(f); i++ {
		if f[i] >= f[i-1] {
			t.Errorf("factors not decreasing: %v", f)
		}
	}
	if len(decelFactors(0, 10*time.Millisecond)) != 0 {
		t.Error("zero decel time should not brake")
	}
}

func TestBrakeNeverExceedsCurrentSpeed(t *testing.T) {
	tuning := DefaultTuning()
	factors := decelFactors(tuning.DecelTime, tuning.Tick)

	// cancelled on the first tick of the ease-in: nothing to slow down from
	s := planStroke(Rect{Width: 2000, Height: 600}, DirectionRight, 30, 100*time.Millisecond, tuning)
	last, _ := s.advance(tuning.Tick)
	for i, f := range factors {
		if dx, _ := s.brake(f, tuning.Tick); dx > last {
			t.Errorf("brake tick %d moved %dpx after a %dpx drag tick", i, dx, last)
		}
	}

	// cancelled half way up the ramp
	s = planStroke(Rect{Width: 2000, Height: 600}, DirectionRight, 30, 100*time.Millisecond, tuning)
	for range 3 {
		last, _ = s.advance(tuning.Tick)
	}
	if dx, _ := s.brake(factors[0], tuning.Tick); dx > last+1 {
		t.Errorf("first brake tick moved %dpx, last drag tick %dpx", dx, last)
	}

	// at cruise speed the ramp starts from full speed
	s = planStroke(Rect{Width: 2000, Height: 600}, DirectionRight, 100, 10*time.Millisecond, tuning)
	for range 10 {
		last, _ = s.advance(tuning.Tick)
	}
	s.fracX = 0
	if dx, _ := s.brake(factors[0], tuning.Tick); dx != last {
		t.Errorf("first brake tick at cruise = %dpx, want %dpx", dx, last)
	}
}
