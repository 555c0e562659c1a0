package config

import (
	"time"

	"github.com/smazurov/viewstream/internal/motion"
	"github.com/smazurov/viewstream/internal/session"
)

// MotionOptions is the [motion] table. It is read at startup and again
// whenever config.toml changes.
type MotionOptions struct {
	EdgeMargin  int           `toml:"motion.edge_margin" env:"MOTION_EDGE_MARGIN"`
	ResetRatio  float64       `toml:"motion.reset_ratio" env:"MOTION_RESET_RATIO"`
	AccelTime   time.Duration `toml:"motion.accel_time" env:"MOTION_ACCEL_TIME"`
	DecelTime   time.Duration `toml:"motion.decel_time" env:"MOTION_DECEL_TIME"`
	Tick        time.Duration `toml:"motion.tick" env:"MOTION_TICK"`
	SpeedFactor float64       `toml:"motion.speed_factor" env:"MOTION_SPEED_FACTOR"`
	SettleTime  time.Duration `toml:"motion.settle_time" env:"MOTION_SETTLE_TIME"`

	RotateStep     int           `toml:"motion.rotate_step" env:"MOTION_ROTATE_STEP"`
	RotateDuration time.Duration `toml:"motion.rotate_duration" env:"MOTION_ROTATE_DURATION"`
	PanStep        int           `toml:"motion.pan_step" env:"MOTION_PAN_STEP"`
	PanDuration    time.Duration `toml:"motion.pan_duration" env:"MOTION_PAN_DURATION"`
	ZoomStep       int           `toml:"motion.zoom_step" env:"MOTION_ZOOM_STEP"`
	ZoomDelay      time.Duration `toml:"motion.zoom_delay" env:"MOTION_ZOOM_DELAY"`
}

// DefaultMotionOptions mirrors motion.DefaultTuning and the stock steps.
func DefaultMotionOptions() MotionOptions {
	t := motion.DefaultTuning()
	s := session.DefaultConfig()
	return MotionOptions{
		EdgeMargin:     t.EdgeMargin,
		ResetRatio:     t.ResetRatio,
		AccelTime:      t.AccelTime,
		DecelTime:      t.DecelTime,
		Tick:           t.Tick,
		SpeedFactor:    t.SpeedFactor,
		SettleTime:     t.SettleTime,
		RotateStep:     s.Rotate.Distance,
		RotateDuration: s.Rotate.Duration,
		PanStep:        s.Pan.Distance,
		PanDuration:    s.Pan.Duration,
		ZoomStep:       s.Zoom.Distance,
		ZoomDelay:      s.Zoom.Duration,
	}
}

// LoadMotionOptions reads the [motion] table from path over the defaults.
func LoadMotionOptions(path string) (MotionOptions, error) {
	opts := DefaultMotionOptions()
	err := LoadFile(&opts, path)
	return opts, err
}

// Tuning returns the drag engine constants.
func (m MotionOptions) Tuning() motion.Tuning {
	return motion.Tuning{
		EdgeMargin:  m.EdgeMargin,
		ResetRatio:  m.ResetRatio,
		AccelTime:   m.AccelTime,
		DecelTime:   m.DecelTime,
		Tick:        m.Tick,
		SpeedFactor: m.SpeedFactor,
		SettleTime:  m.SettleTime,
	}
}

// Steps returns the per-action step sizes.
func (m MotionOptions) Steps() (rotate, pan, zoom session.Step) {
	return session.Step{Distance: m.RotateStep, Duration: m.RotateDuration},
		session.Step{Distance: m.PanStep, Duration: m.PanDuration},
		session.Step{Distance: m.ZoomStep, Duration: m.ZoomDelay}
}
