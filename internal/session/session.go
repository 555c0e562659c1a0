package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/ffmpeg"
	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/metrics"
	"github.com/smazurov/viewstream/internal/motion"
	"github.com/smazurov/viewstream/internal/process"
)

// Supervisor owns one external process. *process.Supervisor implements it.
type Supervisor interface {
	Start(ctx context.Context, spec process.Spec) error
	IsRunning() bool
	Stop(timeout time.Duration) error
	PID() int
	ExitCode() int
}

// MotionController drives the renderer's camera. *motion.Controller
// implements it.
type MotionController interface {
	StartRotate(dir motion.Direction, distance int, duration time.Duration) error
	StartPan(dir motion.Direction, distance int, duration time.Duration) error
	StartZoom(dir motion.Direction, amount int, delay time.Duration) error
	Stop()
	Active() bool
	SetTuning(t motion.Tuning)
}

// WindowFinder resolves the renderer window for x11grab capture.
type WindowFinder interface {
	WindowID(ctx context.Context) (string, error)
}

// EventPublisher receives session events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Renderer Supervisor
	Encoder  Supervisor
	Motion   MotionController
	// Windows may be nil when the capture source selects the window by title.
	Windows WindowFinder
	Events  EventPublisher
	Clock   clockwork.Clock
	Logger  logging.Logger
}

// StartRequest names the asset to render.
type StartRequest struct {
	AssetID      string
	ScenePath    string
	SnapshotPath string
}

// StartResult is returned by a successful Start.
type StartResult struct {
	Endpoint string
	AssetID  string
	RunID    string
}

// Status is a point-in-time view of a session.
type Status struct {
	ID           string
	State        process.State
	AssetID      string
	Endpoint     string
	RunID        string
	RendererPID  int
	EncoderPID   int
	MotionActive bool
	StartedAt    time.Time
	LastError    error
}

// Session is the Idle → Starting → Running → Stopping → Idle state machine
// around one renderer/encoder pair.
type Session struct {
	id       string
	renderer Supervisor
	encoder  Supervisor
	motion   MotionController
	windows  WindowFinder
	events   EventPublisher
	clock    clockwork.Clock
	logger   logging.Logger

	// transitionMu serializes Start, Stop and watchdog teardown.
	transitionMu sync.Mutex

	pendingMu    sync.Mutex
	cancelSettle context.CancelFunc

	mu        sync.RWMutex
	cfg       Config
	state     process.State
	gen       uint64
	assetID   string
	endpoint  string
	runID     string
	startedAt time.Time
	lastError error
	stopWatch context.CancelFunc
}

// New creates an idle session.
func New(id string, cfg Config, deps Deps) *Session {
	s := &Session{
		id:       id,
		cfg:      cfg.withDefaults(),
		renderer: deps.Renderer,
		encoder:  deps.Encoder,
		motion:   deps.Motion,
		windows:  deps.Windows,
		events:   deps.Events,
		clock:    deps.Clock,
		logger:   deps.Logger,
		state:    process.StateIdle,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = logging.GetLogger("session").With("session", id)
	}
	metrics.SetSessionState(id, string(process.StateIdle))
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start launches the renderer, waits for it to settle and then starts the
// encoder on its window. A running session is stopped first. A Start that
// is still settling is abandoned in favour of the newer one.
func (s *Session) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	s.abortSettle()

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.pendingMu.Lock()
	s.cancelSettle = cancel
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		s.cancelSettle = nil
		s.pendingMu.Unlock()
	}()

	if s.State() != process.StateIdle {
		s.logger.Info("Replacing running session", "asset_id", s.Status().AssetID, "new_asset_id", req.AssetID)
		s.teardownLocked(nil)
	}

	runID := uuid.NewString()
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = process.StateStarting
	s.assetID = req.AssetID
	s.runID = runID
	s.endpoint = ""
	s.lastError = nil
	cfg := s.cfg
	s.mu.Unlock()
	s.stateChanged()

	s.logger.Info("Starting session", "asset_id", req.AssetID, "run_id", runID, "scene", req.ScenePath, "snapshot", req.SnapshotPath)

	if err := s.launch(ctx, cfg, req); err != nil {
		s.stopProcesses(cfg.StopTimeout)
		serr := NewError(ErrCodeStartupFailure, "failed to start stream session", err)

		s.mu.Lock()
		s.state = process.StateIdle
		s.assetID, s.runID = "", ""
		s.lastError = serr
		s.mu.Unlock()
		s.stateChanged()

		metrics.RecordSessionStart("failure")
		s.logger.Error("Session failed to start", "asset_id", req.AssetID, "run_id", runID, "error", err)
		return StartResult{}, serr
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	s.mu.Lock()
	s.state = process.StateRunning
	s.endpoint = cfg.PublishURL
	s.startedAt = s.clock.Now()
	s.stopWatch = stopWatch
	s.mu.Unlock()
	s.stateChanged()

	go s.watch(watchCtx, gen, cfg.WatchdogInterval)

	metrics.RecordSessionStart("success")
	s.logger.Info("Session running", "asset_id", req.AssetID, "run_id", runID, "endpoint", cfg.PublishURL,
		"renderer_pid", s.renderer.PID(), "encoder_pid", s.encoder.PID())
	return StartResult{Endpoint: cfg.PublishURL, AssetID: req.AssetID, RunID: runID}, nil
}

// launch starts both processes. Nothing is torn down here; the caller
// stops whatever did start.
func (s *Session) launch(ctx context.Context, cfg Config, req StartRequest) error {
	if err := s.renderer.Start(ctx, rendererSpec(cfg, req)); err != nil {
		return fmt.Errorf("start renderer: %w", err)
	}

	if cfg.SettleDelay > 0 {
		settle := s.clock.NewTimer(cfg.SettleDelay)
		defer settle.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settle.Chan():
		}
	}
	if !s.renderer.IsRunning() {
		return fmt.Errorf("renderer exited with code %d while settling", s.renderer.ExitCode())
	}

	spec, err := s.encoderSpec(ctx, cfg)
	if err != nil {
		return err
	}
	if err := s.encoder.Start(ctx, spec); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	return nil
}

func rendererSpec(cfg Config, req StartRequest) process.Spec {
	args := process.ExpandArgs(cfg.RendererCommand[1:], map[string]string{
		"scene":    req.ScenePath,
		"snapshot": req.SnapshotPath,
		"asset":    req.AssetID,
	})
	return process.Spec{
		Command: cfg.RendererCommand[0],
		Args:    args,
		Dir:     cfg.RendererDir,
		Output:  process.OutputInherit,
	}
}

func (s *Session) encoderSpec(ctx context.Context, cfg Config) (process.Spec, error) {
	params := ffmpeg.EncoderParams{
		Capture:     cfg.Capture,
		Display:     cfg.Display,
		WindowTitle: cfg.WindowTitle,
		FrameRate:   cfg.FrameRate,
		Encoder:     cfg.Encoder,
		QP:          cfg.QP,
		GOP:         cfg.GOP,
		DrawMouse:   cfg.DrawMouse,
		ExtraArgs:   cfg.EncoderArgs,
		OutputURL:   cfg.PublishURL,
	}
	if cfg.Capture != ffmpeg.CaptureGDIGrab && s.windows != nil {
		id, err := s.windows.WindowID(ctx)
		if err != nil {
			return process.Spec{}, fmt.Errorf("find renderer window: %w", err)
		}
		params.WindowID = id
	}

	args, err := ffmpeg.BuildEncoderArgs(params)
	if err != nil {
		return process.Spec{}, fmt.Errorf("build encoder command: %w", err)
	}
	return process.Spec{Command: cfg.EncoderBinary, Args: args, Output: process.OutputLog}, nil
}

// Stop tears the session down. Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.abortSettle()

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if s.State() == process.StateIdle {
		return nil
	}
	s.teardownLocked(nil)
	return nil
}

// teardownLocked runs Running → Stopping → Idle. cause becomes LastError.
// transitionMu must be held.
func (s *Session) teardownLocked(cause error) {
	s.mu.Lock()
	s.state = process.StateStopping
	stopWatch := s.stopWatch
	s.stopWatch = nil
	timeout := s.cfg.StopTimeout
	s.mu.Unlock()
	s.stateChanged()

	if stopWatch != nil {
		stopWatch()
	}
	s.motion.Stop()
	s.stopProcesses(timeout)
	metrics.DeleteEncoderMetrics(s.id)

	s.mu.Lock()
	s.state = process.StateIdle
	s.gen++
	s.assetID, s.endpoint, s.runID = "", "", ""
	s.startedAt = time.Time{}
	s.lastError = cause
	s.mu.Unlock()
	s.stateChanged()

	s.logger.Info("Session stopped")
}

// stopProcesses stops the encoder before the window it captures.
func (s *Session) stopProcesses(timeout time.Duration) {
	if err := s.encoder.Stop(timeout); err != nil {
		s.logger.Warn("Failed to stop encoder", "error", err)
	}
	if err := s.renderer.Stop(timeout); err != nil {
		s.logger.Warn("Failed to stop renderer", "error", err)
	}
}

func (s *Session) abortSettle() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.cancelSettle != nil {
		s.cancelSettle()
	}
}

// watch polls both processes while generation gen is running.
func (s *Session) watch(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		var name string
		var dead Supervisor
		switch {
		case !s.renderer.IsRunning():
			name, dead = "renderer", s.renderer
		case !s.encoder.IsRunning():
			name, dead = "encoder", s.encoder
		default:
			continue
		}
		s.handleExit(gen, name, dead.ExitCode())
		return
	}
}

func (s *Session) handleExit(gen uint64, name string, exitCode int) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.RLock()
	current := s.gen == gen && s.state == process.StateRunning
	s.mu.RUnlock()
	if !current {
		return
	}

	s.logger.Error("Supervised process exited unexpectedly", "process", name, "exit_code", exitCode)
	metrics.RecordUnexpectedExit(name)

	s.teardownLocked(NewError(ErrCodeUnexpectedExit, fmt.Sprintf("%s exited with code %d", name, exitCode), nil))
	s.publish(events.SessionCrashedEvent{
		SessionID: s.id,
		Process:   name,
		ExitCode:  exitCode,
		Timestamp: s.timestamp(),
	})
}

// Control applies a motion command. Only a running session accepts one.
func (s *Session) Control(cmd motion.Command) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != process.StateRunning {
		return ErrSessionNotActive
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	var err error
	if cmd.Mode == motion.ModeStop {
		s.motion.Stop()
	} else {
		switch cmd.Action {
		case motion.ActionRotate:
			err = s.motion.StartRotate(cmd.Direction, s.cfg.Rotate.Distance, s.cfg.Rotate.Duration)
		case motion.ActionPan:
			err = s.motion.StartPan(cmd.Direction, s.cfg.Pan.Distance, s.cfg.Pan.Duration)
		case motion.ActionZoom:
			err = s.motion.StartZoom(cmd.Direction, s.cfg.Zoom.Distance, s.cfg.Zoom.Duration)
		}
	}
	if err != nil {
		return err
	}

	metrics.RecordMotionCommand(string(cmd.Action), string(cmd.Direction))
	s.publish(events.MotionCommandEvent{
		SessionID: s.id,
		Action:    string(cmd.Action),
		Direction: string(cmd.Direction),
		Mode:      string(cmd.Mode),
		Timestamp: s.timestamp(),
	})
	return nil
}

// SetSteps replaces the per-action step sizes used by later commands.
func (s *Session) SetSteps(rotate, pan, zoom Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Rotate, s.cfg.Pan, s.cfg.Zoom = rotate, pan, zoom
}

// SetTuning forwards motion tuning to the controller.
func (s *Session) SetTuning(t motion.Tuning) {
	s.motion.SetTuning(t)
}

// PublishURL is where the encoder pushes the stream, running or not.
func (s *Session) PublishURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.PublishURL
}

// State returns the current state.
func (s *Session) State() process.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsRunning reports whether the session is in Running.
func (s *Session) IsRunning() bool {
	return s.State() == process.StateRunning
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ID:           s.id,
		State:        s.state,
		AssetID:      s.assetID,
		Endpoint:     s.endpoint,
		RunID:        s.runID,
		StartedAt:    s.startedAt,
		LastError:    s.lastError,
		MotionActive: s.motion.Active(),
	}
	if s.state == process.StateRunning {
		st.RendererPID = s.renderer.PID()
		st.EncoderPID = s.encoder.PID()
	}
	return st
}

func (s *Session) stateChanged() {
	s.mu.RLock()
	ev := events.SessionStateChangedEvent{
		SessionID: s.id,
		State:     string(s.state),
		AssetID:   s.assetID,
		Endpoint:  s.endpoint,
		Timestamp: s.timestamp(),
	}
	s.mu.RUnlock()

	metrics.SetSessionState(s.id, ev.State)
	s.publish(ev)
}

func (s *Session) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

func (s *Session) timestamp() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}
