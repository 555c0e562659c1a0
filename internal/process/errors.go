package process

import (
	"errors"
	"fmt"
)

// StartErrorKind classifies why Start failed.
type StartErrorKind string

// Start failure kinds.
const (
	ErrExecutableNotFound StartErrorKind = "executable_not_found"
	ErrImmediateExit      StartErrorKind = "immediate_exit"
	ErrLaunchFailed       StartErrorKind = "launch_failed"
)

// ErrAlreadyRunning is returned by Start when the supervisor still owns a live process.
var ErrAlreadyRunning = errors.New("process already running")

// StartError reports a failed Start. ExitCode is set for ErrImmediateExit.
type StartError struct {
	Kind     StartErrorKind
	Command  string
	ExitCode int
	Cause    error
}

func (e *StartError) Error() string {
	switch e.Kind {
	case ErrExecutableNotFound:
		return fmt.Sprintf("%s: executable not found", e.Command)
	case ErrImmediateExit:
		return fmt.Sprintf("%s: exited during startup with code %d", e.Command, e.ExitCode)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Command, e.Cause)
		}
		return e.Command + ": launch failed"
	}
}

func (e *StartError) Unwrap() error {
	return e.Cause
}

// IsStartError reports whether err is a StartError of the given kind.
func IsStartError(err error, kind StartErrorKind) bool {
	var se *StartError
	return errors.As(err, &se) && se.Kind == kind
}
