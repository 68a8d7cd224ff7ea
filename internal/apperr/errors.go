package apperr

import (
	"errors"
	"fmt"
)

// Error is a coded error carrying a catalog code and a client-facing message.
// Cause is never shown to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// New returns an Error for code with its catalog message.
func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

// Newf returns an Error for code with a custom message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Cause: cause}
}

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Pipeline sentinels raised by routing and request decoding.
var (
	ErrUnreadableBody       = errors.New("request body is not readable")
	ErrMethodNotAllowed     = errors.New("method not allowed")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrNoRoute              = errors.New("no matching route")
)

// MissingParamError reports a required request parameter that was absent.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return "missing required parameter: " + e.Name
}

// ParamTypeError reports a request parameter that could not be converted to
// the expected type.
type ParamTypeError struct {
	Name  string
	Cause error
}

func (e *ParamTypeError) Error() string {
	return "parameter type error: " + e.Name
}

func (e *ParamTypeError) Unwrap() error { return e.Cause }

// PersistenceError wraps a failure of the persistence layer with the
// operation that produced it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless err is nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
