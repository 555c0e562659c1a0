package session

import (
	"net/url"
	"path"

	"github.com/smazurov/viewstream/internal/desktop"
	"github.com/smazurov/viewstream/internal/ffmpeg"
	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/motion"
	"github.com/smazurov/viewstream/internal/process"
)

// FactoryOptions configures the production session wiring.
type FactoryOptions struct {
	Config        Config
	Tuning        motion.Tuning
	Desktop       desktop.Options
	XdotoolBinary string
	Events        EventPublisher
}

// NewFactory returns a Factory wiring real processes, an xdotool actuator
// and encoder progress metrics into each session. Sessions other than the
// default publish on a stream path named after their id.
func NewFactory(opts FactoryOptions) Factory {
	return func(id string) (*Session, error) {
		cfg := opts.Config
		if id != DefaultID {
			cfg.PublishURL = publishURLFor(cfg.PublishURL, id)
		}

		var env []string
		if cfg.Display != "" {
			env = append(env, "DISPLAY="+cfg.Display)
		}
		renderer := process.NewSupervisor("renderer", logging.GetLogger("renderer"))
		dopts := opts.Desktop
		dopts.PID = renderer.PID
		xdo := desktop.New(desktop.ExecRunner{Binary: opts.XdotoolBinary, Env: env}, dopts, logging.GetLogger("desktop"))

		encoder := process.NewSupervisor("encoder", logging.GetLogger("process"),
			process.WithLogParser(logging.GetLogger("encoder"), ffmpeg.ParseLogLevel),
			process.WithOutputHandler(ffmpeg.NewProgressTracker(id)),
		)

		tuning := opts.Tuning
		if tuning == (motion.Tuning{}) {
			tuning = motion.DefaultTuning()
		}

		deps := Deps{
			Renderer: renderer,
			Encoder:  encoder,
			Motion:   motion.NewController(xdo, xdo, motion.WithTuning(tuning)),
			Events:   opts.Events,
		}
		if cfg.Capture != ffmpeg.CaptureGDIGrab {
			deps.Windows = xdo
		}
		return New(id, cfg, deps), nil
	}
}

// publishURLFor swaps the last path element of base for id.
func publishURLFor(base, id string) string {
	u, err := url.Parse(base)
	if err != nil || u.Path == "" {
		return base + "/" + id
	}
	u.Path = path.Join(path.Dir(u.Path), id)
	return u.String()
}
