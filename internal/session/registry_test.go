package session

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/smazurov/viewstream/internal/process"
)

func fakeFactory(id string) (*Session, error) {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	return New(id, cfg, Deps{
		Renderer: &fakeSupervisor{pid: 10},
		Encoder:  &fakeSupervisor{pid: 11},
		Motion:   &fakeMotion{},
		Windows:  fakeWindows{id: "1"},
		Clock:    clockwork.NewFakeClock(),
		Logger:   testLogger(),
	}), nil
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(fakeFactory)

	a, err := r.GetOrCreate("")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if a.ID() != DefaultID {
		t.Errorf("id = %q, want %q", a.ID(), DefaultID)
	}
	b, err := r.GetOrCreate(DefaultID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if a != b {
		t.Error("GetOrCreate built a second default session")
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get found a session that was never created")
	}
	if s, ok := r.Get(" "); !ok || s != a {
		t.Error("blank id must resolve to the default session")
	}

	if _, err := r.GetOrCreate("../etc"); err == nil {
		t.Error("expected an error for an invalid id")
	}
}

func TestRegistryFactoryError(t *testing.T) {
	boom := errors.New("no display")
	r := NewRegistry(func(string) (*Session, error) { return nil, boom })
	if _, err := r.GetOrCreate("cam"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
	if len(r.List()) != 0 {
		t.Error("failed session was registered")
	}
}

func TestRegistryListAndStopAll(t *testing.T) {
	r := NewRegistry(fakeFactory)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		s, err := r.GetOrCreate(id)
		if err != nil {
			t.Fatalf("GetOrCreate(%s): %v", id, err)
		}
		if _, err := s.Start(context.Background(), testRequest); err != nil {
			t.Fatalf("Start(%s): %v", id, err)
		}
	}

	list := r.List()
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID())
	}
	if len(ids) != 3 || ids[0] != "alpha" || ids[1] != "mid" || ids[2] != "zeta" {
		t.Errorf("List ids = %q", ids)
	}

	if err := r.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	for _, s := range list {
		if s.State() != process.StateIdle {
			t.Errorf("session %s state = %s after StopAll", s.ID(), s.State())
		}
	}
}

func TestPublishURLFor(t *testing.T) {
	tests := []struct {
		base, id, want string
	}{
		{"rtsp://127.0.0.1:8555/live", "cam2", "rtsp://127.0.0.1:8555/cam2"},
		{"rtsp://127.0.0.1:8555/streams/live", "b", "rtsp://127.0.0.1:8555/streams/b"},
		{"rtsp://127.0.0.1:8555", "x", "rtsp://127.0.0.1:8555/x"},
	}
	for _, tt := range tests {
		if got := publishURLFor(tt.base, tt.id); got != tt.want {
			t.Errorf("publishURLFor(%q, %q) = %q, want %q", tt.base, tt.id, got, tt.want)
		}
	}
}

func TestErrorMatchesByCode(t *testing.T) {
	err := NewError(ErrCodeStartupFailure, "renderer gone", errors.New("exit 1"))
	if !errors.Is(err, ErrStartupFailure) {
		t.Error("startup failure does not match its sentinel")
	}
	if errors.Is(err, ErrSessionNotActive) {
		t.Error("codes must not cross-match")
	}
	if got := err.Error(); got != "STARTUP_FAILURE: renderer gone: exit 1" {
		t.Errorf("Error() = %q", got)
	}
}
