// Package errors defines the coded errors autotap reports to the CLI and the
// control API. A code selects the exit status and HTTP status; context and
// remediation travel with the error to the user.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Browser errors
	ErrCodeBrowserLaunch   ErrorCode = "BROWSER_LAUNCH"
	ErrCodeBrowserNavigate ErrorCode = "BROWSER_NAVIGATE"

	// Page script errors
	ErrCodeScriptInstall ErrorCode = "SCRIPT_INSTALL"
	ErrCodeScriptEval    ErrorCode = "SCRIPT_EVAL"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error carries a code plus whatever the caller knew when it failed: the
// config key, the page URL, the driver.
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Stack       []Frame
	Retryable   bool
	UserMessage string
	Remediation []string
}

// Frame is one captured call site.
type Frame struct {
	Function string
	File     string
	Line     int
}

// New creates a coded error.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		Stack:   captureStack(2),
	}
}

// Wrap attaches a code and message to err. Wrap(nil, ...) is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
		Stack:      captureStack(2),
	}
}

// WithContext records a key/value pair shown in Error().
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRetryable marks whether retrying the operation may succeed.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithUserMessage sets the human-friendly message returned to users.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// WithRemediation replaces the remediation tips.
func (e *Error) WithRemediation(tips ...string) *Error {
	if len(tips) == 0 {
		return e
	}
	e.Remediation = append([]string{}, tips...)
	return e
}

// Error renders "[CODE] message {k: v, ...}: underlying" with context keys
// sorted.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %v", k, e.Context[k])
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		fmt.Fprintf(&sb, ": %v", e.Underlying)
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// StackTrace formats the captured stack, one call site per entry.
func (e *Error) StackTrace() string {
	var sb strings.Builder
	sb.WriteString("Stack trace:\n")
	for i, frame := range e.Stack {
		fmt.Fprintf(&sb, "  %d. %s\n     %s:%d\n", i+1, frame, frame.File, frame.Line)
	}
	return sb.String()
}

func (f Frame) String() string {
	return f.Function
}

// captureStack records up to 32 frames above its caller, skipping skip more.
// Frames inside the runtime package are dropped.
func captureStack(skip int) []Frame {
	var pcs [32]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return nil
	}

	frames := make([]Frame, 0, n)
	iter := runtime.CallersFrames(pcs[:n])
	for {
		f, more := iter.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			frames = append(frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		}
		if !more {
			break
		}
	}
	return frames
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var tapErr *Error
	if err == nil || !stderrors.As(err, &tapErr) {
		return nil, false
	}
	return tapErr, true
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code ErrorCode) bool {
	tapErr, ok := As(err)
	return ok && tapErr.Code == code
}

// GetCode returns the outermost code in err's chain, ErrCodeInternal for
// uncoded errors and "" for nil.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	tapErr, ok := As(err)
	if !ok {
		return ErrCodeInternal
	}
	return tapErr.Code
}

// IsRetryable reports whether the outermost coded error is retryable.
func IsRetryable(err error) bool {
	tapErr, ok := As(err)
	return ok && tapErr.Retryable
}
