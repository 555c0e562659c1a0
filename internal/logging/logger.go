package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is satisfied by *slog.Logger. Packages accept it so tests can pass
// a discard logger without touching global state.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] section of config.toml.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex         sync.RWMutex
	loggers       = make(map[string]*slog.Logger)
	levels        = make(map[string]*slog.LevelVar)
	rootLevel     = &slog.LevelVar{}
	current       Config
	isInitialized bool
)

// Initialize configures output format and levels. Loggers handed out before
// Initialize are rebuilt so they pick up the journal handler and format.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = cfg
	isInitialized = true
	rootLevel.Set(levelOr(cfg.Level, slog.LevelInfo))

	for module, lv := range levels {
		lv.Set(moduleLevel(cfg, module))
		loggers[module] = slog.New(createHandler(cfg.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(cfg.Format, rootLevel)))
}

// SetLevels applies new global and per-module levels to existing loggers.
// Format changes require a restart.
func SetLevels(global string, modules map[string]string) {
	mutex.Lock()
	defer mutex.Unlock()

	current.Level = global
	current.Modules = modules
	rootLevel.Set(levelOr(global, slog.LevelInfo))
	for module, lv := range levels {
		lv.Set(moduleLevel(current, module))
	}
}

// GetLogger returns the cached logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := loggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		lv.Set(moduleLevel(current, module))
		format = current.Format
	} else {
		lv.Set(slog.LevelInfo)
	}

	logger = slog.New(createHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv
	return logger
}

func moduleLevel(cfg Config, module string) slog.Level {
	level := levelOr(cfg.Level, slog.LevelInfo)
	if override, ok := cfg.Modules[module]; ok {
		level = levelOr(override, level)
	}
	return level
}

// createHandler writes to stdout and, when journald is reachable, to the journal.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdout
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable is false when stdout is /dev/null (a character device
// that is not a terminal shows up as ModeDevice without ModeCharDevice).
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel converts a config string to a level. ok is false for unknown names.
func ParseLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if level, ok := ParseLevel(s); ok {
		return level
	}
	return fallback
}
