package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSupervisor uses short timeouts so tests stay fast.
func newTestSupervisor(opts ...Option) *Supervisor {
	base := []Option{
		WithStartGrace(100 * time.Millisecond),
		WithKillTimeout(500 * time.Millisecond),
	}
	return NewSupervisor("test", testLogger(), append(base, opts...)...)
}

func shSpec(script string) Spec {
	return Spec{Command: "sh", Args: []string{"-c", script}, Output: OutputDiscard}
}

// waitUntil polls cond until it holds or the timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartAndGracefulStop(t *testing.T) {
	s := newTestSupervisor()
	if err := s.Start(context.Background(), shSpec("trap 'exit 0' INT TERM; while :; do sleep 0.05; done")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("expected process to be running after Start")
	}
	if s.PID() == 0 {
		t.Error("expected a pid")
	}
	if got := stateOf(s); got != StateRunning {
		t.Errorf("state = %s, want running", got)
	}

	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("process still running after Stop")
	}
	if code := s.ExitCode(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := stateOf(s); got != StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestStopForceKillsAfterTimeout(t *testing.T) {
	s := newTestSupervisor()
	if err := s.Start(context.Background(), shSpec("trap '' INT; while :; do sleep 0.05; done")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	if err := s.Stop(50 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("stop took too long: %v", elapsed)
	}
	if code := s.ExitCode(); code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestSupervisor()

	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("Stop on idle supervisor: %v", err)
	}

	if err := s.Start(context.Background(), shSpec("sleep 10")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestConcurrentStop(t *testing.T) {
	s := newTestSupervisor()
	if err := s.Start(context.Background(), shSpec("sleep 10")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Stop(time.Second)
		}()
	}
	wg.Wait()

	if s.IsRunning() {
		t.Error("process survived concurrent Stop calls")
	}
}

func TestStartExecutableNotFound(t *testing.T) {
	s := newTestSupervisor()
	err := s.Start(context.Background(), Spec{Command: "/nonexistent/renderer/binary"})
	if !IsStartError(err, ErrExecutableNotFound) {
		t.Fatalf("expected ErrExecutableNotFound, got %v", err)
	}
	if s.IsRunning() || s.PID() != 0 {
		t.Error("failed start must not leave a handle behind")
	}
	if got := stateOf(s); got != StateError {
		t.Errorf("state = %s, want error", got)
	}
}

func TestStartImmediateExit(t *testing.T) {
	s := newTestSupervisor()
	err := s.Start(context.Background(), shSpec("exit 42"))

	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if se.Kind != ErrImmediateExit {
		t.Errorf("kind = %s, want immediate_exit", se.Kind)
	}
	if se.ExitCode != 42 {
		t.Errorf("exit code = %d, want 42", se.ExitCode)
	}
	if s.IsRunning() || s.PID() != 0 {
		t.Error("failed start must not leave a handle behind")
	}
}

func TestStartWhileRunning(t *testing.T) {
	s := newTestSupervisor()
	if err := s.Start(context.Background(), shSpec("sleep 10")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(time.Second)

	if err := s.Start(context.Background(), shSpec("sleep 10")); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartContextCancelledDuringGrace(t *testing.T) {
	s := NewSupervisor("test", testLogger(), WithStartGrace(2*time.Second), WithKillTimeout(200*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := s.Start(ctx, shSpec("sleep 10"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.IsRunning() {
		t.Error("process left running after cancelled start")
	}
}

func TestRestartAfterUnexpectedExit(t *testing.T) {
	s := newTestSupervisor()
	if err := s.Start(context.Background(), shSpec("sleep 0.2; exit 3")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool { return !s.IsRunning() })
	if code := s.ExitCode(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if got := stateOf(s); got != StateError {
		t.Errorf("state after crash = %s, want error", got)
	}

	if err := s.Start(context.Background(), shSpec("sleep 10")); err != nil {
		t.Fatalf("restart: %v", err)
	}
	_ = s.Stop(time.Second)
}

func TestStopKillsBackgroundChildren(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "child.pid")

	s := newTestSupervisor()
	script := "trap '' INT; sleep 10 & echo $! > " + marker + "; wait"
	if err := s.Start(context.Background(), shSpec(script)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		data, err := os.ReadFile(marker)
		return err == nil && len(strings.TrimSpace(string(data))) > 0
	})

	start := time.Now()
	if err := s.Stop(100 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("stop waited on the background child: %v", elapsed)
	}
	if s.IsRunning() {
		t.Error("group leader still running")
	}
}

type recordingHandler struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingHandler) HandleLine(_, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingHandler) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestOutputLogDeliversLines(t *testing.T) {
	h := &recordingHandler{}
	s := newTestSupervisor(WithOutputHandler(h), WithLogParser(testLogger(), func(line string) (string, string) {
		return "info", line
	}))

	spec := shSpec(`printf 'frame=1\rframe=2\n'; echo err >&2; sleep 10`)
	spec.Output = OutputLog
	if err := s.Start(context.Background(), spec); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(time.Second)

	waitUntil(t, time.Second, func() bool { return len(h.snapshot()) >= 3 })

	got := strings.Join(h.snapshot(), "|")
	for _, want := range []string{"frame=1", "frame=2", "err"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing line %q in %q", want, got)
		}
	}
}

func TestExitCodeFromError(t *testing.T) {
	if got := exitCodeFromError(nil); got != 0 {
		t.Errorf("nil error = %d, want 0", got)
	}
	if got := exitCodeFromError(errors.New("boom")); got != 1 {
		t.Errorf("generic error = %d, want 1", got)
	}
}

func stateOf(s *Supervisor) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
