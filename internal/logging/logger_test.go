package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	loggers = make(map[string]*slog.Logger)
	levels = make(map[string]*slog.LevelVar)
	current = Config{}
	isInitialized = false
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"motion": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"motion", true, true, true},
		{"api", false, false, true},
		{"session", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("webrtc")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"webrtc": "debug"}})

	after := GetLogger("webrtc")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Initialize should raise webrtc to debug")
	}
}

func TestSetLevelsRetunesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	logger := GetLogger("motion")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected info level before reload")
	}

	SetLevels("info", map[string]string{"motion": "debug"})

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetLevels should lower motion to debug on the cached logger")
	}

	SetLevels("error", nil)
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("global error level should disable warn once the override is removed")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMultiHandlerWritesOncePerAcceptingHandler(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(multi).With("module", "test")

	logger.Debug("tick")
	logger.Info("pressed", "button", "left")

	if strings.Contains(infoBuf.String(), "tick") {
		t.Error("info handler should not receive debug records")
	}
	if strings.Count(debugBuf.String(), "tick") != 1 {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if !strings.Contains(infoBuf.String(), "button=left") || !strings.Contains(infoBuf.String(), "module=test") {
		t.Errorf("info handler lost attributes: %q", infoBuf.String())
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerKeepsWritingWhenOneSinkFails(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	multi := NewMultiHandler(failingHandler{ok}, ok)

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "released", 0))
	if err == nil {
		t.Error("expected the failing sink error to be reported")
	}
	if !strings.Contains(buf.String(), "released") {
		t.Errorf("healthy sink did not receive record: %q", buf.String())
	}
}

func TestJournalFieldsFlattensGroups(t *testing.T) {
	fields := map[string]string{}
	journalFields(fields, "", slog.Group("rect", slog.Int("x", 10), slog.Int("width", 640)))
	journalFields(fields, "session_", slog.Bool("running", true))
	journalFields(fields, "", slog.Float64("speed", 1.5))

	want := map[string]string{
		"RECT_X":          "10",
		"RECT_WIDTH":      "640",
		"SESSION_RUNNING": "true",
		"SPEED":           "1.5",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}
}
