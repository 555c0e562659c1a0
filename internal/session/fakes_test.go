package session

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/motion"
	"github.com/smazurov/viewstream/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSupervisor stands in for a process.Supervisor.
type fakeSupervisor struct {
	mu       sync.Mutex
	pid      int
	startErr error
	running  bool
	exitCode int
	starts   int
	stops    int
	specs    []process.Spec
}

func (f *fakeSupervisor) Start(_ context.Context, spec process.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.specs = append(f.specs, spec)
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	f.exitCode = -1
	return nil
}

func (f *fakeSupervisor) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSupervisor) Stop(time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.running {
		f.running = false
		f.exitCode = 0
	}
	return nil
}

func (f *fakeSupervisor) PID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return 0
	}
	return f.pid
}

func (f *fakeSupervisor) ExitCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitCode
}

// crash simulates the process dying on its own.
func (f *fakeSupervisor) crash(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.exitCode = code
}

func (f *fakeSupervisor) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func (f *fakeSupervisor) lastSpec() process.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.specs) == 0 {
		return process.Spec{}
	}
	return f.specs[len(f.specs)-1]
}

// fakeMotion records the commands it receives.
type fakeMotion struct {
	mu     sync.Mutex
	calls  []string
	stops  int
	active bool
	tuning motion.Tuning
}

func (f *fakeMotion) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.active = true
}

func (f *fakeMotion) StartRotate(dir motion.Direction, distance int, duration time.Duration) error {
	f.record("rotate " + string(dir) + " " + strconv.Itoa(distance) + " " + duration.String())
	return nil
}

func (f *fakeMotion) StartPan(dir motion.Direction, distance int, duration time.Duration) error {
	f.record("pan " + string(dir) + " " + strconv.Itoa(distance) + " " + duration.String())
	return nil
}

func (f *fakeMotion) StartZoom(dir motion.Direction, amount int, delay time.Duration) error {
	f.record("zoom " + string(dir) + " " + strconv.Itoa(amount) + " " + delay.String())
	return nil
}

func (f *fakeMotion) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.active = false
}

func (f *fakeMotion) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeMotion) SetTuning(t motion.Tuning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tuning = t
}

func (f *fakeMotion) snapshot() (calls []string, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), f.stops
}

type fakeWindows struct{ id string }

func (f fakeWindows) WindowID(context.Context) (string, error) { return f.id, nil }

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) crashes() []events.SessionCrashedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.SessionCrashedEvent
	for _, ev := range r.events {
		if c, ok := ev.(events.SessionCrashedEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingPublisher) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if s, ok := ev.(events.SessionStateChangedEvent); ok {
			out = append(out, s.State)
		}
	}
	return out
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
