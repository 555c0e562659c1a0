package process

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strings"
)

// CapturedOutput is the merged stdout+stderr of a one-shot command.
type CapturedOutput struct {
	Lines    []string
	ExitCode int
}

// Contains reports whether any line contains substr.
func (c CapturedOutput) Contains(substr string) bool {
	for _, line := range c.Lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// RunCaptured runs spec to completion, collecting merged output line by
// line. inspect, when non-nil, sees each line as it arrives. A non-zero
// exit is not an error; check ExitCode.
func RunCaptured(ctx context.Context, spec Spec, inspect func(line string)) (CapturedOutput, error) {
	var out CapturedOutput

	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return out, &StartError{Kind: ErrExecutableNotFound, Command: spec.Command, Cause: err}
	}

	cmd := exec.CommandContext(ctx, path, spec.Args...)
	cmd.Dir = workDir(spec)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return out, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		kind := ErrLaunchFailed
		if errors.Is(err, fs.ErrNotExist) {
			kind = ErrExecutableNotFound
		}
		return out, &StartError{Kind: kind, Command: spec.Command, Cause: err}
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPartialLine)
	for scanner.Scan() {
		line := scanner.Text()
		out.Lines = append(out.Lines, line)
		if inspect != nil {
			inspect(line)
		}
	}

	waitErr := cmd.Wait()
	out.ExitCode = exitCodeFromError(waitErr)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return out, waitErr
	}
	return out, scanner.Err()
}
