// Package logging provides per-module slog loggers with runtime-adjustable levels.
//
// Call Initialize once at startup, then ask for a logger by module name:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{"motion": "debug"},
//	})
//
//	logger := logging.GetLogger("session").With("session_id", id)
//	logger.Info("Renderer started", "pid", pid)
//
// Records go to stdout when it is attached to something useful and to the
// systemd journal when journald is reachable. Journal entries are tagged
// with SYSLOG_IDENTIFIER=viewstream and every attribute becomes an
// upper-cased journal field, so
//
//	journalctl -t viewstream MODULE=motion
//	journalctl -t viewstream SESSION_ID=default -p warning
//
// work as expected.
//
// Levels are backed by slog.LevelVar, so SetLevels can retune a running
// process after a config reload without recreating loggers.
package logging
