package ffmpeg

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/smazurov/viewstream/internal/process"
)

// Encoder is one video encoder reported by ffmpeg -encoders.
type Encoder struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HWAccel     bool   `json:"hwaccel"`
}

// DefaultEncoderPreference is tried in order by SelectEncoder.
var DefaultEncoderPreference = []string{"h264_nvenc", "h264_vaapi", "h264_qsv", "libx264"}

var (
	encoderLine  = regexp.MustCompile(`^\s*([VASF\.]{6})\s+(\w+)\s+(.+)$`)
	hwaccelNames = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|v4l2m2m|rkmpp)`)
)

// ListEncoders runs "<binary> -hide_banner -encoders" and returns the video encoders.
func ListEncoders(ctx context.Context, binary string) ([]Encoder, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	out, err := process.RunCaptured(ctx, process.Spec{Command: binary, Args: []string{"-hide_banner", "-encoders"}}, nil)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("%s -encoders exited with code %d", binary, out.ExitCode)
	}
	return parseEncoderOutput(out.Lines), nil
}

// parseEncoderOutput keeps the video encoders listed after the legend.
func parseEncoderOutput(lines []string) []Encoder {
	var result []Encoder
	started := false
	for _, line := range lines {
		if !started {
			// the legend ends with a " ------" separator
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}
		m := encoderLine.FindStringSubmatch(line)
		if len(m) != 4 || m[1][0] != 'V' {
			continue
		}
		result = append(result, Encoder{
			Name:        m[2],
			Description: strings.TrimSpace(m[3]),
			HWAccel:     hwaccelNames.MatchString(m[2]),
		})
	}
	return result
}

// SelectEncoder returns the first preferred encoder that is available, or
// "" when none is.
func SelectEncoder(available []Encoder, preferred []string) string {
	if len(preferred) == 0 {
		preferred = DefaultEncoderPreference
	}
	for _, name := range preferred {
		if slices.ContainsFunc(available, func(e Encoder) bool { return e.Name == name }) {
			return name
		}
	}
	return ""
}
