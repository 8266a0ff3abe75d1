// Package apperr defines the failure kinds a staging run can end with.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindTimeout
	KindRemoteFailure
	KindUnexpectedStatus
	KindConfiguration
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindTimeout:
		return "timeout"
	case KindRemoteFailure:
		return "remote failure"
	case KindUnexpectedStatus:
		return "unexpected status"
	case KindConfiguration:
		return "configuration error"
	case KindExecution:
		return "execution error"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status reported for the kind
func (k Kind) ExitCode() int {
	switch k {
	case KindConfiguration:
		return 2
	case KindNotFound:
		return 3
	case KindTimeout:
		return 4
	case KindRemoteFailure:
		return 5
	case KindUnexpectedStatus:
		return 6
	case KindExecution:
		return 7
	default:
		return 1
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrRemoteFailure    = &Error{Kind: KindRemoteFailure}
	ErrUnexpectedStatus = &Error{Kind: KindUnexpectedStatus}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrExecution        = &Error{Kind: KindExecution}
)

// Error is a classified failure. Op names what was being attempted (a
// command line for ExecutionError), Err is the underlying cause if any.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality against the package sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Timeout(format string, args ...any) error {
	return &Error{Kind: KindTimeout, Msg: fmt.Sprintf(format, args...)}
}

func RemoteFailure(format string, args ...any) error {
	return &Error{Kind: KindRemoteFailure, Msg: fmt.Sprintf(format, args...)}
}

func UnexpectedStatus(format string, args ...any) error {
	return &Error{Kind: KindUnexpectedStatus, Msg: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Execution wraps the failure of an external operation. op is the command or
// operation that triggered it.
func Execution(op string, err error) error {
	return &Error{Kind: KindExecution, Op: op, Msg: "failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
