package session

import "fmt"

// Error is a session failure with a stable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so errors.Is(err,
// ErrStartupFailure) holds for every startup failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodeSessionNotActive = "SESSION_NOT_ACTIVE"
	ErrCodeStartupFailure   = "STARTUP_FAILURE"
	ErrCodeUnexpectedExit   = "UNEXPECTED_EXIT"
)

// Sentinels for errors.Is.
var (
	ErrSessionNotActive = &Error{Code: ErrCodeSessionNotActive, Message: "stream session is not running"}
	ErrStartupFailure   = &Error{Code: ErrCodeStartupFailure, Message: "stream session failed to start"}
	ErrUnexpectedExit   = &Error{Code: ErrCodeUnexpectedExit, Message: "supervised process exited"}
)

// NewError creates a new session error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
