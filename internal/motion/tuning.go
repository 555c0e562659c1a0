package motion

import "time"

// Tuning holds the drag engine constants. They were tuned by hand against
// one renderer and are configuration, not contract.
type Tuning struct {
	// EdgeMargin keeps every pointer position this many pixels inside the
	// surface. It is at least 1 since Rect.Right and Rect.Bottom lie one past
	// the last pixel.
	EdgeMargin int
	// ResetRatio of the available travel after which a drag is reset.
	ResetRatio float64
	AccelTime  time.Duration
	DecelTime  time.Duration
	Tick       time.Duration
	// SpeedFactor scales the caller's step rate into the top drag speed.
	SpeedFactor float64
	// SettleTime is waited after press and release so the target registers them.
	SettleTime time.Duration
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		EdgeMargin:  30,
		ResetRatio:  0.95,
		AccelTime:   50 * time.Millisecond,
		DecelTime:   50 * time.Millisecond,
		Tick:        10 * time.Millisecond,
		SpeedFactor: 1.5,
		SettleTime:  10 * time.Millisecond,
	}
}

// normalized replaces unusable values with defaults.
func (t Tuning) normalized() Tuning {
	d := DefaultTuning()
	switch {
	case t.EdgeMargin < 0:
		t.EdgeMargin = d.EdgeMargin
	case t.EdgeMargin == 0:
		t.EdgeMargin = 1
	}
	if t.ResetRatio <= 0 || t.ResetRatio > 1 {
		t.ResetRatio = d.ResetRatio
	}
	if t.AccelTime < 0 {
		t.AccelTime = d.AccelTime
	}
	if t.DecelTime < 0 {
		t.DecelTime = d.DecelTime
	}
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	if t.SpeedFactor <= 0 {
		t.SpeedFactor = d.SpeedFactor
	}
	if t.SettleTime < 0 {
		t.SettleTime = d.SettleTime
	}
	return t
}
