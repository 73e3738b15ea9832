// Package errs provides the coded error type shared by the pipeline packages.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes a failure.
type Code string

const (
	CodeInternal            Code = "INTERNAL"
	CodeInvalidConfig       Code = "INVALID_CONFIG"
	CodeSourceUnavailable   Code = "SOURCE_UNAVAILABLE"
	CodeWriteUnavailable    Code = "WRITE_UNAVAILABLE"
	CodeExternalToolMissing Code = "EXTERNAL_TOOL_MISSING"
	CodeExternalToolFailure Code = "EXTERNAL_TOOL_FAILURE"
	CodeRenderJobFailure    Code = "RENDER_JOB_FAILURE"
)

// Error carries a code, the failing operation and optional context fields.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
	Fields  map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField attaches a context field and returns the same error.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err keeping its code when err is already an *Error.
func Wrap(err error, op, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Code: e.Code, Op: op, Message: message, Err: err, Fields: e.Fields}
	}
	return &Error{Code: CodeInternal, Op: op, Message: message, Err: err}
}

// WrapWithCode wraps err under an explicit code.
func WrapWithCode(err error, code Code, op, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func InvalidConfig(op, format string, args ...any) *Error {
	return Newf(CodeInvalidConfig, op, format, args...)
}

func SourceUnavailable(op string, err error) *Error {
	return WrapWithCode(orMissing(err), CodeSourceUnavailable, op, "source unavailable")
}

func WriteUnavailable(op string, err error) *Error {
	return WrapWithCode(orMissing(err), CodeWriteUnavailable, op, "destination not writable")
}

// GetCode returns the code of the first *Error in the chain, CodeInternal otherwise.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return GetCode(err) == code
}

// Fields returns the context fields of the first *Error in the chain.
func Fields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

func orMissing(err error) error {
	if err == nil {
		return errors.New("unknown cause")
	}
	return err
}
