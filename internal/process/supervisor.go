package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/viewstream/internal/logging"
)

// Spec describes one process launch.
type Spec struct {
	Command string
	Args    []string
	// Dir defaults to the executable's directory when Command is a path,
	// otherwise to the current directory.
	Dir    string
	Env    []string // appended to the parent environment
	Output OutputMode
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStartGrace sets how long Start watches for an immediate exit.
func WithStartGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.startGrace = d }
}

// WithKillTimeout bounds the final wait after SIGKILL.
func WithKillTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.killTimeout = d }
}

// WithLogParser routes OutputLog lines to logger, graded by parser.
func WithLogParser(logger logging.Logger, parser LogParser) Option {
	return func(s *Supervisor) {
		s.outputLogger = logger
		s.logParser = parser
	}
}

// WithOutputHandler registers a handler for every OutputLog line.
func WithOutputHandler(h OutputHandler) Option {
	return func(s *Supervisor) { s.outputHandler = h }
}

// Supervisor owns at most one running OS process.
type Supervisor struct {
	name          string
	logger        logging.Logger
	outputLogger  logging.Logger
	logParser     LogParser
	outputHandler OutputHandler
	startGrace    time.Duration
	killTimeout   time.Duration
	stopSignal    syscall.Signal

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	done     chan struct{} // closed once the process has been reaped
	exitCode int
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(name string, logger logging.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:        name,
		logger:      logger,
		startGrace:  time.Second,
		killTimeout: 5 * time.Second,
		stopSignal:  syscall.SIGINT,
		state:       StateIdle,
		exitCode:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the supervisor's role name.
func (s *Supervisor) Name() string {
	return s.name
}

// Start launches spec and blocks for the start grace window. A process that
// exits inside the window yields a StartError with ErrImmediateExit.
// Cancelling ctx during the window stops the process and returns ctx.Err().
func (s *Supervisor) Start(ctx context.Context, spec Spec) error {
	s.mu.Lock()
	if s.cmd != nil && !isClosed(s.done) {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	path, err := exec.LookPath(spec.Command)
	if err != nil {
		s.failLocked()
		s.mu.Unlock()
		return &StartError{Kind: ErrExecutableNotFound, Command: spec.Command, Cause: err}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = workDir(spec)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = s.killTimeout

	var writers []*lineWriter
	switch spec.Output {
	case OutputInherit:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case OutputLog:
		stdout := newLineWriter("stdout", s.handleLine)
		stderr := newLineWriter("stderr", s.handleLine)
		cmd.Stdout, cmd.Stderr = stdout, stderr
		writers = append(writers, stdout, stderr)
	case OutputDiscard:
		// nil stdio is wired to the null device
	}

	if err := cmd.Start(); err != nil {
		s.failLocked()
		s.mu.Unlock()
		kind := ErrLaunchFailed
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			kind = ErrExecutableNotFound
		}
		return &StartError{Kind: kind, Command: spec.Command, Cause: err}
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.state = StateStarting
	s.exitCode = -1
	pid := cmd.Process.Pid
	s.mu.Unlock()

	s.logger.Info("Process started", "name", s.name, "pid", pid, "command", path, "args", spec.Args, "dir", cmd.Dir)

	go s.reap(cmd, done, writers)

	grace := time.NewTimer(s.startGrace)
	defer grace.Stop()

	select {
	case <-done:
		code := s.ExitCode()
		s.mu.Lock()
		s.state = StateError
		s.cmd = nil
		s.mu.Unlock()
		s.logger.Error("Process exited during startup", "name", s.name, "exit_code", code)
		return &StartError{Kind: ErrImmediateExit, Command: spec.Command, ExitCode: code}
	case <-ctx.Done():
		_ = s.Stop(s.killTimeout)
		return ctx.Err()
	case <-grace.C:
	}

	s.mu.Lock()
	if s.done == done && s.state == StateStarting {
		s.state = StateRunning
	}
	s.mu.Unlock()
	return nil
}

// reap waits for the process and records its exit status.
func (s *Supervisor) reap(cmd *exec.Cmd, done chan struct{}, writers []*lineWriter) {
	err := cmd.Wait()
	for _, w := range writers {
		w.Flush()
	}

	code := exitCodeFromError(err)
	s.mu.Lock()
	s.exitCode = code
	if s.state == StateRunning || s.state == StateStarting {
		s.state = StateError
	}
	s.mu.Unlock()
	close(done)

	s.logger.Info("Process exited", "name", s.name, "pid", cmd.Process.Pid, "exit_code", code)
}

// IsRunning reports whether the process is alive. It never blocks on I/O.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && !isClosed(s.done)
}

// Stop sends the stop signal to the process group, waits up to timeout and
// then SIGKILLs. Stopping an idle supervisor is a no-op.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	if cmd == nil {
		s.mu.Unlock()
		return nil
	}
	if isClosed(done) {
		s.cmd = nil
		s.state = StateIdle
		s.mu.Unlock()
		return nil
	}
	alreadyStopping := s.state == StateStopping
	s.state = StateStopping
	s.mu.Unlock()

	pid := cmd.Process.Pid
	if !alreadyStopping {
		s.logger.Info("Stopping process", "name", s.name, "pid", pid, "signal", s.stopSignal.String())
		s.signalGroup(pid, s.stopSignal)
	}

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Graceful stop timed out, killing", "name", s.name, "pid", pid, "timeout", timeout)
		s.signalGroup(pid, syscall.SIGKILL)
		select {
		case <-done:
		case <-time.After(s.killTimeout):
			s.logger.Error("Process did not exit after SIGKILL", "name", s.name, "pid", pid)
			err = errors.New(s.name + ": process did not exit after kill")
		}
	}

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd = nil
		s.state = StateIdle
	}
	s.mu.Unlock()
	return err
}

// signalGroup signals the whole process group so helpers spawned by the
// child go down with it.
func (s *Supervisor) signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("Failed to signal process group", "name", s.name, "pid", pid, "signal", sig.String(), "error", err)
	}
}

// PID returns the running process id, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitCode returns the last exit code, or -1 if the process has not exited.
// A process terminated by a signal reports 128+signal (137 after SIGKILL).
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

func (s *Supervisor) failLocked() {
	s.state = StateError
	s.cmd = nil
}

func (s *Supervisor) handleLine(source, line string) {
	if s.outputHandler != nil {
		s.outputHandler.HandleLine(source, line)
	}
	logger := s.outputLogger
	if logger == nil {
		logger = s.logger
	}
	logLine(logger, s.logParser, line)
}

func workDir(spec Spec) string {
	if spec.Dir != "" {
		return spec.Dir
	}
	if filepath.Base(spec.Command) != spec.Command {
		return filepath.Dir(spec.Command)
	}
	return ""
}

func isClosed(ch chan struct{}) bool {
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// exitCodeFromError maps a Wait error to a shell-style exit code.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
