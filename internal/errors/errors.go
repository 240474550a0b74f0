// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorType classifies a script error.
type ErrorType string

const (
	SyntaxError   ErrorType = "SyntaxError"
	RuntimeError  ErrorType = "RuntimeError"
	ArgumentError ErrorType = "ArgumentError"
	UserError     ErrorType = "UserError"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	File string
	Line int
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// ScriptError is the value carried by a raised error. Message is what the
// error method sees; the rest is diagnostic context for the host.
type ScriptError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame

	// Reported is set once the error method has been notified, so that
	// an error relayed through several boundaries is reported only once.
	Reported bool
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))

	if e.Location.File != "" {
		if e.Location.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d", e.Location.File, e.Location.Line))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at %s", e.Location.File))
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:")
		for _, frame := range e.CallStack {
			if frame.Function != "" {
				sb.WriteString(fmt.Sprintf("\n  at %s (%s:%d)", frame.Function, frame.File, frame.Line))
			} else {
				sb.WriteString(fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line))
			}
		}
	}

	return sb.String()
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message string, file string, line int) *ScriptError {
	return &ScriptError{
		Type:     SyntaxError,
		Message:  message,
		Location: SourceLocation{File: file, Line: line},
	}
}

// NewRuntimeError creates a new runtime error
func NewRuntimeError(message string) *ScriptError {
	return &ScriptError{Type: RuntimeError, Message: message}
}

// NewArgumentError reports a bad argument to a builtin. A zero position
// means the arguments as a whole were wrong.
func NewArgumentError(position int, function, detail string) *ScriptError {
	var msg string
	if position > 0 {
		msg = fmt.Sprintf("bad argument #%d to '%s'", position, function)
	} else {
		msg = fmt.Sprintf("bad arguments to '%s'", function)
	}
	if detail != "" {
		msg += " (" + detail + ")"
	}
	return &ScriptError{Type: ArgumentError, Message: msg}
}

// NewUserError is an error raised explicitly by a script.
func NewUserError(message string) *ScriptError {
	return &ScriptError{Type: UserError, Message: message}
}

// At records where the error was raised unless a location is already set.
func (e *ScriptError) At(file string, line int) *ScriptError {
	if e.Location.File == "" && e.Location.Line == 0 {
		e.Location = SourceLocation{File: file, Line: line}
	}
	return e
}

// AddStackFrame adds a single stack frame
func (e *ScriptError) AddStackFrame(function, file string, line int) *ScriptError {
	e.CallStack = append(e.CallStack, StackFrame{
		Function: function,
		File:     file,
		Line:     line,
	})
	return e
}

// As reports whether err, or the cause of a wrapped err, is a
// *ScriptError and returns it.
func As(err error) (*ScriptError, bool) {
	if err == nil {
		return nil, false
	}
	se, ok := pkgerrors.Cause(err).(*ScriptError)
	return se, ok
}
