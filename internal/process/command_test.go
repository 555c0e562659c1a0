package process

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr error
	}{
		{"simple", "python run.py --gui", []string{"python", "run.py", "--gui"}, nil},
		{"double quotes", `ffmpeg -i "title=Instant Neural Graphics Primitives"`, []string{"ffmpeg", "-i", "title=Instant Neural Graphics Primitives"}, nil},
		{"single quotes", `sh -c 'exit 0'`, []string{"sh", "-c", "exit 0"}, nil},
		{"escaped space", `run\ me now`, []string{"run me", "now"}, nil},
		{"empty quoted arg", `cmd "" x`, []string{"cmd", "", "x"}, nil},
		{"extra whitespace", "  a \t b  ", []string{"a", "b"}, nil},
		{"empty", "", nil, nil},
		{"unclosed", `echo "oops`, nil, ErrUnclosedQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandArgs(t *testing.T) {
	args := []string{"run.py", "--scene", "{scene}", "--load_snapshot", "{snapshot}", "--name={scene}"}
	got := ExpandArgs(args, map[string]string{"scene": "/data/a_scene", "snapshot": "/static/a.msgpack"})
	want := []string{"run.py", "--scene", "/data/a_scene", "--load_snapshot", "/static/a.msgpack", "--name=/data/a_scene"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandArgs = %q, want %q", got, want)
	}
}

func TestRunCapturedMergesOutput(t *testing.T) {
	var seen []string
	out, err := RunCaptured(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo ' V..... h264_nvenc'; echo warn >&2; exit 2"},
	}, func(line string) { seen = append(seen, line) })
	if err != nil {
		t.Fatalf("RunCaptured: %v", err)
	}
	if out.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", out.ExitCode)
	}
	if !out.Contains("h264_nvenc") || !out.Contains("warn") {
		t.Errorf("merged output missing lines: %q", out.Lines)
	}
	if len(seen) != len(out.Lines) {
		t.Errorf("inspect saw %d lines, captured %d", len(seen), len(out.Lines))
	}
}

func TestRunCapturedMissingBinary(t *testing.T) {
	_, err := RunCaptured(context.Background(), Spec{Command: "definitely-not-a-real-binary-xyz"}, nil)
	if !IsStartError(err, ErrExecutableNotFound) {
		t.Errorf("expected ErrExecutableNotFound, got %v", err)
	}
}

func TestLineWriterSplitsOnCRAndLF(t *testing.T) {
	var got []string
	w := newLineWriter("stderr", func(_, line string) { got = append(got, line) })

	_, _ = w.Write([]byte("frame=  1 fps=0.0\rframe=  2 fps="))
	_, _ = w.Write([]byte("30\n\npartial"))
	w.Flush()

	want := []string{"frame=  1 fps=0.0", "frame=  2 fps=30", "partial"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}
