package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/viewstream/internal/metrics"
)

// Progress is one encoder progress report.
type Progress struct {
	Frame      int64
	FPS        float64
	Speed      float64
	Dropped    int64
	Duplicated int64
}

var statsField = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// IsStatsLine reports whether line is a -stats progress line.
func IsStatsLine(line string) bool {
	return strings.HasPrefix(line, "frame=")
}

// ParseStatsLine parses a -stats line such as
// "frame=  120 fps= 30 q=19.0 size=N/A time=00:00:04.00 bitrate=N/A dup=0 drop=2 speed=1.00x".
func ParseStatsLine(line string) (Progress, bool) {
	if !IsStatsLine(line) {
		return Progress{}, false
	}
	fields := make(map[string]string)
	for _, m := range statsField.FindAllStringSubmatch(line, -1) {
		fields[m[1]] = m[2]
	}
	return progressFromFields(fields)
}

func progressFromFields(fields map[string]string) (Progress, bool) {
	var p Progress
	frame, err := strconv.ParseInt(fields["frame"], 10, 64)
	if err != nil {
		return p, false
	}
	p.Frame = frame
	if fps, err := strconv.ParseFloat(fields["fps"], 64); err == nil {
		p.FPS = fps
	}
	speed := strings.TrimSuffix(fields["speed"], "x")
	if v, err := strconv.ParseFloat(strings.TrimSpace(speed), 64); err == nil {
		p.Speed = v
	}
	// -stats says drop/dup, -progress says drop_frames/dup_frames
	for _, key := range []string{"drop", "drop_frames"} {
		if v, err := strconv.ParseInt(fields[key], 10, 64); err == nil {
			p.Dropped = v
		}
	}
	for _, key := range []string{"dup", "dup_frames"} {
		if v, err := strconv.ParseInt(fields[key], 10, 64); err == nil {
			p.Duplicated = v
		}
	}
	return p, true
}

// ProgressTracker is a process.OutputHandler that turns encoder progress
// into metrics for one session. It accepts both -stats lines and
// -progress key=value blocks.
type ProgressTracker struct {
	sessionID string

	mu      sync.Mutex
	block   map[string]string
	last    Progress
	updated bool
}

// NewProgressTracker creates a tracker publishing under sessionID.
func NewProgressTracker(sessionID string) *ProgressTracker {
	return &ProgressTracker{sessionID: sessionID, block: make(map[string]string)}
}

// HandleLine implements process.OutputHandler.
func (t *ProgressTracker) HandleLine(_, line string) {
	_, line = ParseLogLevel(strings.TrimSpace(line))
	if p, ok := ParseStatsLine(line); ok && strings.Contains(line, " ") {
		t.record(p)
		return
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok || strings.ContainsAny(key, " []") {
		return
	}
	t.mu.Lock()
	t.block[key] = value
	if key != "progress" {
		t.mu.Unlock()
		return
	}
	block := t.block
	t.block = make(map[string]string)
	t.mu.Unlock()

	if p, ok := progressFromFields(block); ok {
		t.record(p)
	}
}

// Last returns the most recent report and whether one has arrived.
func (t *ProgressTracker) Last() (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.updated
}

// Close removes the session's encoder metrics.
func (t *ProgressTracker) Close() {
	metrics.DeleteEncoderMetrics(t.sessionID)
}

func (t *ProgressTracker) record(p Progress) {
	t.mu.Lock()
	t.last, t.updated = p, true
	t.mu.Unlock()

	metrics.SetEncoderFPS(t.sessionID, p.FPS)
	metrics.SetEncoderSpeed(t.sessionID, p.Speed)
	metrics.SetEncoderDroppedFrames(t.sessionID, float64(p.Dropped))
	metrics.SetEncoderDuplicateFrames(t.sessionID, float64(p.Duplicated))
}
