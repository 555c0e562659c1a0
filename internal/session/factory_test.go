package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/smazurov/viewstream/internal/ffmpeg"
	"github.com/smazurov/viewstream/internal/process"
)

// fakeXdotool answers "search --pid N" with window wN and any other search
// with the same window for everyone.
const fakeXdotool = `#!/bin/sh
while [ $# -gt 0 ]; do
	if [ "$1" = "--pid" ]; then
		echo "w$2"
		exit 0
	fi
	shift
done
echo shared
`

func TestFactorySessionsResolveTheirOwnWindow(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "xdotool")
	if err := os.WriteFile(bin, []byte(fakeXdotool), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Capture = ffmpeg.CaptureX11Grab
	r := NewRegistry(NewFactory(FactoryOptions{Config: cfg, XdotoolBinary: bin}))

	ctx := context.Background()
	seen := make(map[string]string)
	for _, id := range []string{DefaultID, "lab"} {
		s, err := r.GetOrCreate(id)
		if err != nil {
			t.Fatalf("GetOrCreate(%q): %v", id, err)
		}
		if err := s.renderer.Start(ctx, process.Spec{Command: "sh", Args: []string{"-c", "sleep 30"}}); err != nil {
			t.Fatalf("start renderer for %q: %v", id, err)
		}
		t.Cleanup(func() { _ = s.renderer.Stop(time.Second) })

		win, err := s.windows.WindowID(ctx)
		if err != nil {
			t.Fatalf("WindowID(%q): %v", id, err)
		}
		if want := "w" + strconv.Itoa(s.renderer.PID()); win != want {
			t.Errorf("session %q window = %q, want %q", id, win, want)
		}
		if other, dup := seen[win]; dup {
			t.Errorf("sessions %q and %q share window %s", other, id, win)
		}
		seen[win] = id
	}

	lab, _ := r.Get("lab")
	if got := lab.PublishURL(); got != "rtsp://127.0.0.1:8555/lab" {
		t.Errorf("lab publish URL = %q", got)
	}
}
