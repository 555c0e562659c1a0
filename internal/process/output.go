package process

import (
	"bytes"
	"sync"

	"github.com/smazurov/viewstream/internal/logging"
)

// OutputMode selects what happens to a child's stdout and stderr.
type OutputMode int

const (
	// OutputInherit leaves the child attached to the host console.
	OutputInherit OutputMode = iota
	// OutputLog splits output into lines and writes them to the output logger.
	OutputLog
	// OutputDiscard drops all output.
	OutputDiscard
)

// OutputHandler receives every output line of a supervised process,
// e.g. to scrape encoder progress into metrics.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine implements OutputHandler.
func (f OutputHandlerFunc) HandleLine(source, line string) { f(source, line) }

// LogParser grades a line of process output. level is one of the ffmpeg
// style names (error, warning, info, debug, ...).
type LogParser func(line string) (level, msg string)

// maxPartialLine bounds how much unterminated output is buffered.
const maxPartialLine = 64 * 1024

// lineWriter is an io.Writer that emits complete lines. Both '\n' and '\r'
// terminate a line since encoders redraw their progress line with '\r'.
type lineWriter struct {
	source string
	emit   func(source, line string)

	mu  sync.Mutex
	buf []byte
}

func newLineWriter(source string, emit func(source, line string)) *lineWriter {
	return &lineWriter{source: source, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		if i > 0 {
			w.emit(w.source, string(w.buf[:i]))
		}
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxPartialLine {
		w.emit(w.source, string(w.buf))
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.source, string(w.buf))
		w.buf = nil
	}
}

// logLine writes a graded line to logger.
func logLine(logger logging.Logger, parser LogParser, line string) {
	level, msg := "info", line
	if parser != nil {
		level, msg = parser(line)
	}

	switch level {
	case "panic", "fatal", "error":
		logger.Error(msg)
	case "warning":
		logger.Warn(msg)
	case "verbose", "debug", "trace":
		logger.Debug(msg)
	case "quiet":
	default:
		logger.Info(msg)
	}
}
