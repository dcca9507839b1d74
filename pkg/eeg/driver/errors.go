package driver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies driver failures. Timeout is the only recoverable
// kind: callers may retry the read. Everything else either rejects the
// requested operation (UnsupportedConfig, AlreadyRunning) or ends the
// session (HardwareFault).
type ErrorKind int

const (
	UnsupportedConfig ErrorKind = iota
	AlreadyRunning
	Timeout
	HardwareFault
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedConfig:
		return "unsupported config"
	case AlreadyRunning:
		return "already running"
	case Timeout:
		return "timeout"
	case HardwareFault:
		return "hardware fault"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Error is the error type returned by every Board operation.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "read_batch"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("driver: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func kindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsTimeout reports whether err is a recoverable read timeout.
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == Timeout
}

// IsFatal reports whether err must terminate the session.
func IsFatal(err error) bool {
	k, ok := kindOf(err)
	return ok && k == HardwareFault
}
