// Package ffmpeg builds the encoder command line that captures the renderer
// window and pushes it to the RTSP relay, and interprets the encoder's log
// and progress output.
package ffmpeg
