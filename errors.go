package twai

import "errors"

// Code is a status code reported by the controller or its driver.
// It is a comparable string newtype and implements error.
type Code string

func (c Code) Error() string { return "twai: " + string(c) }

const (
	OK              Code = "ok"
	ErrInvalidState Code = "invalid_state"
	ErrInvalidArg   Code = "invalid_arg"
	ErrTimeout      Code = "timeout"
	ErrNotSupported Code = "not_supported"
	ErrNoMem        Code = "no_mem"
	ErrFail         Code = "fail" // generic fallback
)

// Error wraps a driver failure with the operation that produced it.
type Error struct {
	C   Code
	Op  string
	Err error
}

func (e *Error) Error() string {
	s := "twai: " + e.Op + ": " + string(e.C)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Code() Code    { return e.C }

// Is lets errors.Is(err, ErrTimeout) match a wrapped *Error.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// CodeOf extracts a Code from an error, defaulting to ErrFail.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return ErrFail
}

// ErrClosed indicates the driver or endpoint has been closed.
var ErrClosed = errors.New("twai: closed")
