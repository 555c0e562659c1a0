package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/viewstream/internal/config"
	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/process"
	"github.com/smazurov/viewstream/internal/scene"
	"github.com/smazurov/viewstream/internal/session"
	"github.com/smazurov/viewstream/internal/streaming"
)

// CreateRunCmd creates the run command, which streams one asset in the
// foreground without the HTTP server.
func CreateRunCmd() *cobra.Command {
	flags := DefaultSessionFlags()
	var (
		configFile string
		staticRoot string
		assetID    int64
		logJSON    bool
		relayAddr  string
	)

	cmd := &cobra.Command{
		Use:   "run [model-path]",
		Short: "Stream one asset in the foreground",
		Long: `Resolves the snapshot at model-path (for example static/uploads/7/model.msgpack), ` +
			`launches the renderer and the encoder, and runs until interrupted or until either process exits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("run")

			motionOpts, err := config.LoadMotionOptions(configFile)
			if err != nil {
				logger.Warn("Failed to load motion settings, using defaults", "error", err)
				motionOpts = config.DefaultMotionOptions()
			}

			paths, err := scene.Resolve(staticRoot, args[0])
			if err != nil {
				return err
			}
			info, err := scene.Preflight(paths.Snapshot)
			if err != nil {
				return err
			}
			logger.Info("Snapshot ok", "path", paths.Snapshot, "size", info.Size, "scene", paths.Scene)

			bus := events.New()
			factory, err := flags.Factory(motionOpts, bus)
			if err != nil {
				return err
			}
			sess, err := factory(session.DefaultID)
			if err != nil {
				return err
			}

			if addr, ok := localRelayAddr(flags.PublishURL, relayAddr); ok {
				hub := streaming.NewHub(logging.GetLogger("streaming"), bus)
				relay := streaming.NewServer(hub, logging.GetLogger("streaming"))
				if err := relay.Start(addr); err != nil {
					// a running server already provides the relay
					logger.Info("Not starting RTSP relay, address busy", "addr", addr, "error", err)
				} else {
					defer func() { _ = relay.Stop() }()
				}
			}

			crashed := make(chan events.SessionCrashedEvent, 1)
			unsub := events.On(bus, func(ev events.SessionCrashedEvent) {
				select {
				case crashed <- ev:
				default:
				}
			})
			defer unsub()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := sess.Start(ctx, session.StartRequest{
				AssetID:      strconv.FormatInt(assetID, 10),
				ScenePath:    paths.Scene,
				SnapshotPath: paths.Snapshot,
			})
			if process.IsStartError(err, process.ErrExecutableNotFound) {
				return fmt.Errorf("%w (run \"viewstream probe\" to check the tool chain)", err)
			}
			if err != nil {
				return err
			}
			logger.Info("Streaming", "endpoint", res.Endpoint, "run_id", res.RunID)

			select {
			case <-ctx.Done():
				logger.Info("Interrupted, stopping")
				return sess.Stop()
			case ev := <-crashed:
				err := fmt.Errorf("%s exited with code %d", ev.Process, ev.ExitCode)
				if stopErr := sess.Stop(); stopErr != nil {
					err = errors.Join(err, stopErr)
				}
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Config file for [motion] settings")
	cmd.Flags().StringVar(&staticRoot, "static-root", "static", "Directory that static/ paths map onto")
	cmd.Flags().Int64Var(&assetID, "asset-id", 0, "Asset id reported in events")
	cmd.Flags().StringVar(&relayAddr, "relay-addr", ":8555", "Embedded RTSP relay address, used when the publish URL points at it; empty disables")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	flags.Register(cmd)
	return cmd
}

// localRelayAddr reports whether publishURL targets the relay on relayAddr
// on this host, returning the address to listen on.
func localRelayAddr(publishURL, relayAddr string) (string, bool) {
	if relayAddr == "" {
		return "", false
	}
	u, err := url.Parse(publishURL)
	if err != nil || u.Scheme != "rtsp" {
		return "", false
	}
	_, relayPort, err := net.SplitHostPort(relayAddr)
	if err != nil {
		return "", false
	}
	port := u.Port()
	if port == "" {
		port = "554"
	}
	if port != relayPort {
		return "", false
	}
	switch host := u.Hostname(); host {
	case "localhost":
	default:
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			return "", false
		}
	}
	return relayAddr, true
}
