package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/viewstream/cmd"
	"github.com/smazurov/viewstream/internal/api"
	"github.com/smazurov/viewstream/internal/config"
	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/metrics/exporters"
	"github.com/smazurov/viewstream/internal/session"
	"github.com/smazurov/viewstream/internal/streaming"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	StaticRoot string `help:"Directory that static/ model paths map onto" default:"static" toml:"server.static_root" env:"SERVER_STATIC_ROOT"`

	// Relay settings
	RTSPEnabled    bool   `help:"Run the embedded RTSP relay" default:"true" toml:"rtsp.enabled" env:"RTSP_ENABLED"`
	RTSPAddr       string `help:"RTSP relay listen address" default:":8555" toml:"rtsp.addr" env:"RTSP_ADDR"`
	RTSPPublicPort int    `help:"RTSP port advertised to clients, 0 for the listen port" default:"0" toml:"rtsp.public_port" env:"RTSP_PUBLIC_PORT"`
	ICEServers     string `help:"Comma separated STUN/TURN URLs for WebRTC viewers" default:"" toml:"webrtc.ice_servers" env:"WEBRTC_ICE_SERVERS"`

	// Renderer settings
	RendererCommand string `help:"Renderer command line; {scene}, {snapshot} and {asset} are substituted" default:"python run.py --scene {scene} --load_snapshot {snapshot} --gui" toml:"renderer.command" env:"RENDERER_COMMAND"`
	RendererDir     string `help:"Renderer working directory" default:"" toml:"renderer.dir" env:"RENDERER_DIR"`
	WindowTitle     string `help:"Renderer window title" default:"Instant Neural Graphics Primitives" toml:"renderer.window_title" env:"RENDERER_WINDOW_TITLE"`
	Display         string `help:"X display" default:":0" toml:"renderer.display" env:"DISPLAY_NAME"`
	TopOffset       int    `help:"Pixels cut from the top of the window" default:"50" toml:"renderer.top_offset" env:"RENDERER_TOP_OFFSET"`
	XdotoolBinary   string `help:"xdotool binary" default:"xdotool" toml:"renderer.xdotool" env:"XDOTOOL_BINARY"`
	SettleDelayMs   int    `help:"Wait between renderer and encoder start in milliseconds" default:"3000" toml:"renderer.settle_delay_ms" env:"RENDERER_SETTLE_DELAY_MS"`

	// Encoder settings
	EncoderBinary string `help:"ffmpeg binary" default:"ffmpeg" toml:"encoder.binary" env:"ENCODER_BINARY"`
	Encoder       string `help:"Video encoder, or auto" default:"h264_nvenc" toml:"encoder.codec" env:"ENCODER_CODEC"`
	Capture       string `help:"Capture source (x11grab, gdigrab)" default:"x11grab" toml:"encoder.capture" env:"ENCODER_CAPTURE"`
	FrameRate     int    `help:"Capture frame rate" default:"30" toml:"encoder.framerate" env:"ENCODER_FRAMERATE"`
	QP            int    `help:"Encoder quantizer" default:"19" toml:"encoder.qp" env:"ENCODER_QP"`
	GOP           int    `help:"Keyframe interval in frames, 0 for encoder default" default:"0" toml:"encoder.gop" env:"ENCODER_GOP"`
	DrawMouse     bool   `help:"Include the pointer in the captured video" default:"false" toml:"encoder.draw_mouse" env:"ENCODER_DRAW_MOUSE"`
	EncoderArgs   string `help:"Extra ffmpeg options inserted before the output" default:"" toml:"encoder.extra_args" env:"ENCODER_EXTRA_ARGS"`
	PublishURL    string `help:"Where the encoder publishes the default session" default:"rtsp://127.0.0.1:8555/live" toml:"encoder.publish_url" env:"ENCODER_PUBLISH_URL"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`
	ObsSSEEnabled        bool `help:"Enable SSE metrics" default:"true" toml:"obs.sse_enabled" env:"OBS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`
	CORSOrigins  string `help:"Comma separated origins allowed to call the API, empty for any" default:"" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingSession   string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingMotion    string `help:"Motion logging level" default:"info" toml:"logging.motion" env:"LOGGING_MOTION"`
	LoggingRenderer  string `help:"Renderer output logging level" default:"info" toml:"logging.renderer" env:"LOGGING_RENDERER"`
	LoggingEncoder   string `help:"Encoder output logging level" default:"warn" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingStreaming string `help:"RTSP relay logging level" default:"info" toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingWebRTC    string `help:"WebRTC logging level" default:"info" toml:"logging.webrtc" env:"LOGGING_WEBRTC"`
}

func (o *Options) sessionFlags() cmd.SessionFlags {
	return cmd.SessionFlags{
		RendererCommand: o.RendererCommand,
		RendererDir:     o.RendererDir,
		EncoderBinary:   o.EncoderBinary,
		Encoder:         o.Encoder,
		Capture:         o.Capture,
		Display:         o.Display,
		WindowTitle:     o.WindowTitle,
		FrameRate:       o.FrameRate,
		QP:              o.QP,
		GOP:             o.GOP,
		DrawMouse:       o.DrawMouse,
		EncoderArgs:     o.EncoderArgs,
		PublishURL:      o.PublishURL,
		SettleDelay:     time.Duration(o.SettleDelayMs) * time.Millisecond,
		XdotoolBinary:   o.XdotoolBinary,
		TopOffset:       o.TopOffset,
	}
}

func (o *Options) loggingModules() map[string]string {
	return map[string]string{
		"api":       o.LoggingAPI,
		"session":   o.LoggingSession,
		"motion":    o.LoggingMotion,
		"desktop":   o.LoggingMotion,
		"renderer":  o.LoggingRenderer,
		"encoder":   o.LoggingEncoder,
		"streaming": o.LoggingStreaming,
		"webrtc":    o.LoggingWebRTC,
	}
}

// rtspPublicPort is the port clients are told to connect to.
func (o *Options) rtspPublicPort() int {
	if o.RTSPPublicPort > 0 {
		return o.RTSPPublicPort
	}
	if _, p, err := net.SplitHostPort(o.RTSPAddr); err == nil {
		if port, err := strconv.Atoi(p); err == nil {
			return port
		}
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: opts.loggingModules(),
		})
		logger := logging.GetLogger("main")

		reloadable, err := config.LoadReloadable(opts.Config)
		if err != nil {
			logger.Warn("Failed to load reloadable settings, using defaults", "error", err)
			reloadable.Motion = config.DefaultMotionOptions()
		}
		var current atomic.Pointer[config.MotionOptions]
		current.Store(&reloadable.Motion)

		// Create event bus for in-process event handling
		eventBus := events.New()

		base, err := opts.sessionFlags().Factory(reloadable.Motion, eventBus)
		if err != nil {
			logger.Error("Invalid session configuration", "error", err)
			os.Exit(1)
		}
		// Sessions created after a reload start with the reloaded motion settings.
		registry := session.NewRegistry(func(id string) (*session.Session, error) {
			sess, err := base(id)
			if err != nil {
				return nil, err
			}
			m := current.Load()
			sess.SetTuning(m.Tuning())
			sess.SetSteps(m.Steps())
			return sess, nil
		})

		watcher := config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"))
		watcher.OnReload(func(r config.Reloadable) {
			modules := opts.loggingModules()
			for k, v := range r.Logging.Modules {
				modules[k] = v
			}
			logging.SetLevels(r.Logging.Level, modules)

			current.Store(&r.Motion)
			for _, sess := range registry.List() {
				sess.SetTuning(r.Motion.Tuning())
				sess.SetSteps(r.Motion.Steps())
			}
			logger.Info("Applied config reload", "level", r.Logging.Level)
		})

		// Embedded RTSP relay with WebRTC viewers
		var (
			relayServer *streaming.Server
			relay       *streaming.Hub
			viewers     *streaming.Viewers
		)
		if opts.RTSPEnabled {
			streamingLogger := logging.GetLogger("streaming")
			relay = streaming.NewHub(streamingLogger, eventBus)
			relayServer = streaming.NewServer(relay, streamingLogger)

			viewers = streaming.NewViewers(relay, streaming.WebRTCConfig{ICEServers: splitList(opts.ICEServers)}, logging.GetLogger("webrtc"))
		}

		apiOpts := &api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			CORSOrigins:   splitList(opts.CORSOrigins),
			StaticRoot:    opts.StaticRoot,
			RTSPPort:      opts.rtspPublicPort(),
			EncoderBinary: opts.EncoderBinary,
			Sessions:      registry,
			EventBus:      eventBus,
			Relay:         relay,
			Viewers:       viewers,
		}
		if opts.ObsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var sseExporter *exporters.SSEExporter
		if opts.ObsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		hooks.OnStart(func() {
			// The relay must be up before any encoder publishes to it
			if relayServer != nil {
				if startErr := relayServer.Start(opts.RTSPAddr); startErr != nil {
					logger.Error("Failed to start RTSP relay", "error", startErr)
					os.Exit(1)
				}
			}

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config hot reload disabled", "error", startErr)
			}
			if sseExporter != nil {
				sseExporter.Start(context.Background())
			}

			if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); ok {
				logger.Debug("Notified systemd")
			}

			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(5 * time.Second); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop renderers and encoders after the API stops taking requests
			if stopErr := registry.StopAll(); stopErr != nil {
				logger.Error("Error stopping sessions", "error", stopErr)
			}

			if viewers != nil {
				viewers.Stop()
			}
			if relayServer != nil {
				if stopErr := relayServer.Stop(); stopErr != nil {
					logger.Error("Error stopping RTSP relay", "error", stopErr)
				}
			}

			if sseExporter != nil {
				sseExporter.Stop()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "viewstream"
	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
