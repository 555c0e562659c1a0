package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/viewstream/internal/config"
	"github.com/smazurov/viewstream/internal/desktop"
	"github.com/smazurov/viewstream/internal/ffmpeg"
	"github.com/smazurov/viewstream/internal/process"
	"github.com/smazurov/viewstream/internal/session"
)

// SessionFlags is the launch configuration shared by the server and the
// run command.
type SessionFlags struct {
	RendererCommand string
	RendererDir     string
	EncoderBinary   string
	Encoder         string
	Capture         string
	Display         string
	WindowTitle     string
	FrameRate       int
	QP              int
	GOP             int
	DrawMouse       bool
	EncoderArgs     string
	PublishURL      string
	SettleDelay     time.Duration
	XdotoolBinary   string
	TopOffset       int
}

// DefaultSessionFlags mirrors session.DefaultConfig.
func DefaultSessionFlags() SessionFlags {
	d := session.DefaultConfig()
	return SessionFlags{
		RendererCommand: "python run.py --scene {scene} --load_snapshot {snapshot} --gui",
		EncoderBinary:   d.EncoderBinary,
		Encoder:         d.Encoder,
		Capture:         string(d.Capture),
		Display:         d.Display,
		WindowTitle:     d.WindowTitle,
		FrameRate:       d.FrameRate,
		QP:              d.QP,
		PublishURL:      d.PublishURL,
		SettleDelay:     d.SettleDelay,
		XdotoolBinary:   "xdotool",
		TopOffset:       50,
	}
}

// Register adds the flags to cmd.
func (f *SessionFlags) Register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.RendererCommand, "renderer-command", f.RendererCommand, "Renderer command line; {scene}, {snapshot} and {asset} are substituted")
	fs.StringVar(&f.RendererDir, "renderer-dir", f.RendererDir, "Renderer working directory")
	fs.StringVar(&f.EncoderBinary, "encoder-binary", f.EncoderBinary, "ffmpeg binary")
	fs.StringVar(&f.Encoder, "encoder", f.Encoder, "Video encoder, or auto")
	fs.StringVar(&f.Capture, "capture", f.Capture, "Capture source (x11grab, gdigrab)")
	fs.StringVar(&f.Display, "display", f.Display, "X display")
	fs.StringVar(&f.WindowTitle, "window-title", f.WindowTitle, "Renderer window title")
	fs.IntVar(&f.FrameRate, "framerate", f.FrameRate, "Capture frame rate")
	fs.IntVar(&f.QP, "qp", f.QP, "Encoder quantizer")
	fs.IntVar(&f.GOP, "gop", f.GOP, "Keyframe interval in frames, 0 for encoder default")
	fs.BoolVar(&f.DrawMouse, "draw-mouse", f.DrawMouse, "Include the pointer in the captured video")
	fs.StringVar(&f.EncoderArgs, "encoder-args", f.EncoderArgs, "Extra ffmpeg options inserted before the output")
	fs.StringVar(&f.PublishURL, "publish-url", f.PublishURL, "Where the encoder publishes")
	fs.DurationVar(&f.SettleDelay, "settle-delay", f.SettleDelay, "Wait between renderer and encoder start")
	fs.StringVar(&f.XdotoolBinary, "xdotool", f.XdotoolBinary, "xdotool binary")
	fs.IntVar(&f.TopOffset, "top-offset", f.TopOffset, "Pixels cut from the top of the window")
}

// Factory builds the session factory for these flags, resolving "auto"
// encoders against what ffmpeg reports.
func (f SessionFlags) Factory(motionOpts config.MotionOptions, events session.EventPublisher) (session.Factory, error) {
	argv, err := process.ParseCommand(f.RendererCommand)
	if err != nil {
		return nil, fmt.Errorf("renderer command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("renderer command is empty")
	}

	extra, err := process.ParseCommand(f.EncoderArgs)
	if err != nil {
		return nil, fmt.Errorf("encoder args: %w", err)
	}

	capture := ffmpeg.CaptureSource(f.Capture)
	if capture != ffmpeg.CaptureX11Grab && capture != ffmpeg.CaptureGDIGrab {
		return nil, fmt.Errorf("unknown capture source %q", f.Capture)
	}

	encoder := f.Encoder
	if encoder == "" || encoder == "auto" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		available, err := ffmpeg.ListEncoders(ctx, f.EncoderBinary)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("list encoders: %w", err)
		}
		if encoder = ffmpeg.SelectEncoder(available, nil); encoder == "" {
			return nil, fmt.Errorf("no usable H.264 encoder in %s", f.EncoderBinary)
		}
	}

	cfg := session.DefaultConfig()
	cfg.RendererCommand = argv
	cfg.RendererDir = f.RendererDir
	cfg.EncoderBinary = f.EncoderBinary
	cfg.Encoder = encoder
	cfg.Capture = capture
	cfg.Display = f.Display
	cfg.WindowTitle = f.WindowTitle
	cfg.FrameRate = f.FrameRate
	cfg.QP = f.QP
	cfg.GOP = f.GOP
	cfg.DrawMouse = f.DrawMouse
	cfg.EncoderArgs = extra
	cfg.PublishURL = f.PublishURL
	cfg.SettleDelay = f.SettleDelay
	cfg.Rotate, cfg.Pan, cfg.Zoom = motionOpts.Steps()

	return session.NewFactory(session.FactoryOptions{
		Config: cfg,
		Tuning: motionOpts.Tuning(),
		Desktop: desktop.Options{
			WindowTitle:   f.WindowTitle,
			TopOffset:     f.TopOffset,
			ActivateDelay: 100 * time.Millisecond,
		},
		XdotoolBinary: f.XdotoolBinary,
		Events:        events,
	}), nil
}
