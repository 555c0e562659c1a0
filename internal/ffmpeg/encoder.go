package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CaptureSource selects the screen grabber.
type CaptureSource string

// Capture sources.
const (
	CaptureX11Grab CaptureSource = "x11grab"
	CaptureGDIGrab CaptureSource = "gdigrab"
)

// Builder errors.
var (
	ErrNoWindow      = errors.New("capture window not set")
	ErrNoOutput      = errors.New("output url not set")
	ErrUnknownSource = errors.New("unknown capture source")
)

// EncoderParams describes one window capture to stream.
type EncoderParams struct {
	Capture CaptureSource
	// Display is the X11 display for x11grab, e.g. ":0".
	Display string
	// WindowID selects the window for x11grab.
	WindowID string
	// WindowTitle selects the window for gdigrab.
	WindowTitle string

	FrameRate int
	Encoder   string // h264_nvenc, libx264, ...
	QP        int    // constant quantizer (0 = encoder default)
	GOP       int    // keyframe interval in frames (0 = half a second)
	DrawMouse bool

	OutputURL string
	ExtraArgs []string // appended before the output options
}

// Base returns the flags every encoder invocation starts with. level+info
// prefixes each log line with its level so ParseLogLevel can grade it.
func Base() []string {
	return []string{"-hide_banner", "-loglevel", "level+info", "-stats"}
}

// BuildEncoderArgs returns the ffmpeg argv (without the binary) for p.
func BuildEncoderArgs(p EncoderParams) ([]string, error) {
	if p.OutputURL == "" {
		return nil, ErrNoOutput
	}
	fps := p.FrameRate
	if fps <= 0 {
		fps = 30
	}
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}

	args := Base()

	// Grab with minimal buffering so latency stays at a frame or two
	args = append(args,
		"-fflags", "+genpts+flush_packets+nobuffer",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-use_wallclock_as_timestamps", "1",
	)

	drawMouse := "0"
	if p.DrawMouse {
		drawMouse = "1"
	}
	switch p.Capture {
	case CaptureX11Grab, "":
		if p.WindowID == "" {
			return nil, ErrNoWindow
		}
		display := p.Display
		if display == "" {
			display = ":0"
		}
		args = append(args, "-f", "x11grab", "-framerate", strconv.Itoa(fps), "-draw_mouse", drawMouse,
			"-window_id", p.WindowID, "-i", display)
	case CaptureGDIGrab:
		if p.WindowTitle == "" {
			return nil, ErrNoWindow
		}
		args = append(args, "-f", "gdigrab", "-framerate", strconv.Itoa(fps), "-draw_mouse", drawMouse,
			"-i", "title="+p.WindowTitle)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, p.Capture)
	}

	args = append(args, "-vf", "format=yuv420p", "-c:v", encoder)

	if strings.Contains(encoder, "nvenc") {
		args = append(args, "-preset", "p1", "-tune", "ull", "-rc-lookahead", "0")
		if p.QP > 0 {
			args = append(args, "-rc", "constqp", "-qp", strconv.Itoa(p.QP), "-b:v", "0")
		}
	} else {
		if !IsHardwareEncoder(encoder) {
			args = append(args, "-preset", "ultrafast", "-tune", "zerolatency")
		}
		if p.QP > 0 {
			args = append(args, "-qp", strconv.Itoa(p.QP))
		}
	}

	gop := p.GOP
	if gop <= 0 {
		gop = max(1, fps/2)
	}
	// No B-frames: browsers and WebRTC peers expect decode order == display order
	args = append(args, "-bf", "0", "-g", strconv.Itoa(gop), "-keyint_min", strconv.Itoa(gop))

	args = append(args, p.ExtraArgs...)

	if strings.HasPrefix(p.OutputURL, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp", "-f", "rtsp", p.OutputURL)
	} else {
		args = append(args, "-muxdelay", "0", "-muxpreload", "0", "-flush_packets", "1", "-f", "mpegts", p.OutputURL)
	}
	return args, nil
}

// IsHardwareEncoder reports whether codec runs on a GPU or VPU.
func IsHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "vaapi", "qsv", "amf", "videotoolbox", "v4l2m2m", "rkmpp"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
