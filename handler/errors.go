package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/eranb/em-aws/pool"
)

// Kind classifies execution errors.
type Kind int

const (
	// KindOther is any transport failure not otherwise classified.
	KindOther Kind = iota
	// KindTimeout covers connect, inactivity and status-0 timeouts.
	KindTimeout
	// KindPoolExhausted means no connection was free in never-block mode.
	KindPoolExhausted
	// KindPoolTimeout means no connection was released within the pool timeout.
	KindPoolTimeout
	// KindFatal marks errors that are returned to the caller.
	KindFatal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindTimeout:
		return "timeout"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindPoolTimeout:
		return "pool_timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FatalKind refines KindFatal.
type FatalKind int

const (
	FatalNone FatalKind = iota
	// FatalInvalidArgument is a malformed option or request.
	FatalInvalidArgument
	// FatalUnsupported is a request the handler cannot perform, e.g. an unknown verb.
	FatalUnsupported
	// FatalInternalDefect is a bug, such as a recovered panic.
	FatalInternalDefect
)

// String returns the fatal kind name.
func (f FatalKind) String() string {
	switch f {
	case FatalNone:
		return "none"
	case FatalInvalidArgument:
		return "invalid_argument"
	case FatalUnsupported:
		return "unsupported"
	case FatalInternalDefect:
		return "internal_defect"
	default:
		return "unknown"
	}
}

// Error is a classified execution error.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Fatal refines KindFatal errors.
	Fatal FatalKind
	// Op is the execution step that failed: build, acquire or dispatch.
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	kind := e.Kind.String()
	if e.Kind == KindFatal {
		kind += "(" + e.Fatal.String() + ")"
	}
	if e.Op == "" {
		return fmt.Sprintf("emhttp: %s: %v", kind, e.Err)
	}
	return fmt.Sprintf("emhttp: %s %s: %v", e.Op, kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrInactivity is the cause of a timeout raised by the inactivity watchdog.
var ErrInactivity = errors.New("no data received within inactivity timeout")

// errZeroStatus is recorded when the transport reports success with status 0.
var errZeroStatus = errors.New("response completed with status 0")

func fatalError(kind FatalKind, op string, err error) *Error {
	return &Error{Kind: KindFatal, Fatal: kind, Op: op, Err: err}
}

// classify maps err onto the error taxonomy. Errors that are already
// classified keep their kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, pool.ErrExhausted):
		return &Error{Kind: KindPoolExhausted, Op: op, Err: err}
	case errors.Is(err, pool.ErrTimeout):
		return &Error{Kind: KindPoolTimeout, Op: op, Err: err}
	case isTimeout(err):
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	default:
		return &Error{Kind: KindOther, Op: op, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrInactivity) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// KindOf returns the kind of a classified error, or KindOther.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return err != nil && KindOf(err) == KindTimeout
}

// IsPoolExhausted checks if an error is a pool exhaustion error.
func IsPoolExhausted(err error) bool {
	return err != nil && KindOf(err) == KindPoolExhausted
}

// IsPoolTimeout checks if an error is a pool acquisition timeout.
func IsPoolTimeout(err error) bool {
	return err != nil && KindOf(err) == KindPoolTimeout
}

// IsFatal checks if an error must propagate to the caller.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

// IsNetworkError checks if an error is recoverable, i.e. recorded on a
// Response rather than returned.
func IsNetworkError(err error) bool {
	return err != nil && !IsFatal(err)
}
