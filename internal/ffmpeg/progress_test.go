package ffmpeg

import (
	"testing"

	"github.com/smazurov/viewstream/internal/metrics"
)

func TestParseStatsLine(t *testing.T) {
	p, ok := ParseStatsLine("frame=  120 fps= 29.97 q=19.0 size=N/A time=00:00:04.00 bitrate=N/A dup=3 drop=2 speed=1.01x")
	if !ok {
		t.Fatal("stats line not recognized")
	}
	want := Progress{Frame: 120, FPS: 29.97, Speed: 1.01, Dropped: 2, Duplicated: 3}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}

	if _, ok := ParseStatsLine("[info] Stream mapping:"); ok {
		t.Error("non-stats line parsed as stats")
	}
	if _, ok := ParseStatsLine("frame=N/A fps=0.0"); ok {
		t.Error("line without a frame count must be rejected")
	}
}

func TestParseLogLevelGradesStatsAsDebug(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] frame=   10 fps=0.0 speed=0.5x", "debug", "frame=   10 fps=0.0 speed=0.5x"},
		{"frame=   10 fps=0.0", "debug", "frame=   10 fps=0.0"},
		{"[error] Cannot open display :0", "error", "Cannot open display :0"},
		{"[x11grab @ 0x55d] [warning] window moved", "warning", "[x11grab @ 0x55d] window moved"},
		{"plain line", "info", "plain line"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestProgressTrackerStatsLines(t *testing.T) {
	const session = "progress-stats"
	tr := NewProgressTracker(session)
	defer tr.Close()

	if _, ok := tr.Last(); ok {
		t.Fatal("tracker reported progress before any line")
	}

	tr.HandleLine("stderr", "[info] frame=   30 fps= 30 q=19.0 size=N/A time=00:00:01.00 bitrate=N/A speed=   1x")

	p, ok := tr.Last()
	if !ok || p.Frame != 30 || p.FPS != 30 || p.Speed != 1 {
		t.Errorf("Last = %+v, %v", p, ok)
	}
	m := metrics.GetEncoderMetrics(session)
	if m == nil || m.FPS != 30 {
		t.Errorf("metrics not updated: %+v", m)
	}
}

func TestProgressTrackerProgressBlocks(t *testing.T) {
	const session = "progress-blocks"
	tr := NewProgressTracker(session)
	defer tr.Close()

	for _, line := range []string{
		"frame=90",
		"fps=29.50",
		"drop_frames=4",
		"dup_frames=1",
		"speed=0.98x",
	} {
		tr.HandleLine("stdout", line)
	}
	if _, ok := tr.Last(); ok {
		t.Fatal("block recorded before its progress= terminator")
	}

	tr.HandleLine("stdout", "progress=continue")
	p, ok := tr.Last()
	want := Progress{Frame: 90, FPS: 29.5, Speed: 0.98, Dropped: 4, Duplicated: 1}
	if !ok || p != want {
		t.Errorf("Last = %+v, want %+v", p, want)
	}

	tr.Close()
	if m := metrics.GetEncoderMetrics(session); m != nil {
		t.Error("Close must remove the session's metrics")
	}
}
