package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable      = errors.New("browser runtime unavailable")
	ErrSessionClosed    = errors.New("browser session closed")
	ErrOperationTimeout = errors.New("operation timeout")
)

// ScriptError wraps failures reported while running script in a page, with a
// short code naming the operation or failure class.
type ScriptError struct {
	Code    string
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("script error [%s]: %s", e.Code, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// NewScriptError creates a new ScriptError.
func NewScriptError(code, message string) *ScriptError {
	return &ScriptError{Code: code, Message: message}
}

// WrapScriptError wraps an existing error with script context.
func WrapScriptError(code, message string, err error) *ScriptError {
	return &ScriptError{Code: code, Message: message, Err: err}
}

// IsRetryableError returns true if the error might succeed on retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOperationTimeout) {
		return true
	}
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		switch scriptErr.Code {
		case "timeout", "unavailable":
			return true
		}
	}
	return false
}
