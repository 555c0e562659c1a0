package session

import (
	"time"

	"github.com/smazurov/viewstream/internal/ffmpeg"
)

// Step is one actuation step; its ratio sets the motion speed.
type Step struct {
	Distance int
	Duration time.Duration
}

// Config holds everything a session needs to launch its processes.
type Config struct {
	// RendererCommand is an argv template; {scene}, {snapshot} and {asset}
	// are substituted on start.
	RendererCommand []string
	RendererDir     string

	EncoderBinary string
	Capture       ffmpeg.CaptureSource
	Display       string
	WindowTitle   string
	FrameRate     int
	Encoder       string
	QP            int
	GOP           int
	DrawMouse     bool
	// EncoderArgs are extra ffmpeg options placed before the output.
	EncoderArgs []string
	// PublishURL is where the encoder pushes the stream.
	PublishURL string

	SettleDelay      time.Duration
	WatchdogInterval time.Duration
	StopTimeout      time.Duration

	Rotate Step
	Pan    Step
	Zoom   Step
}

// DefaultConfig returns the stock renderer and encoder setup.
func DefaultConfig() Config {
	return Config{
		RendererCommand: []string{"python", "run.py", "--scene", "{scene}", "--load_snapshot", "{snapshot}", "--gui"},
		EncoderBinary:   "ffmpeg",
		Capture:         ffmpeg.CaptureX11Grab,
		Display:         ":0",
		WindowTitle:     "Instant Neural Graphics Primitives",
		FrameRate:       30,
		Encoder:         "h264_nvenc",
		QP:              19,
		PublishURL:      "rtsp://127.0.0.1:8555/live",

		SettleDelay:      3 * time.Second,
		WatchdogInterval: 500 * time.Millisecond,
		StopTimeout:      5 * time.Second,

		Rotate: Step{Distance: 15, Duration: 50 * time.Millisecond},
		Pan:    Step{Distance: 20, Duration: 50 * time.Millisecond},
		// X11 wheel clicks are whole notches: one every 300ms is the same
		// rate as a 20 unit wheel delta (1/6 notch) every 50ms.
		Zoom: Step{Distance: 1, Duration: 300 * time.Millisecond},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.RendererCommand) == 0 {
		c.RendererCommand = d.RendererCommand
	}
	if c.EncoderBinary == "" {
		c.EncoderBinary = d.EncoderBinary
	}
	if c.PublishURL == "" {
		c.PublishURL = d.PublishURL
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = d.WatchdogInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}
