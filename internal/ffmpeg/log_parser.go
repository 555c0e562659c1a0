package ffmpeg

import "strings"

// ParseLogLevel grades a line written with -loglevel level+info, which looks
// like "[error] msg" or "[h264_nvenc @ 0x5581] [warning] msg". The level tag
// is removed and component tags are kept. Lines without a level are info;
// stats lines are debug since the encoder redraws them several times a second.
func ParseLogLevel(line string) (level, msg string) {
	level, msg = parseLevel(line)
	if IsStatsLine(msg) {
		level = "debug"
	}
	return level, msg
}

func parseLevel(line string) (level, msg string) {
	rest := line
	prefix := 0
	for strings.HasPrefix(rest, "[") {
		tag, after, ok := strings.Cut(rest[1:], "] ")
		if !ok {
			break
		}
		if isLogLevel(tag) {
			return tag, line[:prefix] + after
		}
		n := len(tag) + 3
		prefix += n
		rest = rest[n:]
	}
	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
