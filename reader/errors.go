package reader

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/maxpert/auditsource/schema"
)

// Error kinds. Every error returned by the reader wraps exactly one of them,
// so callers classify with errors.Is(err, reader.ErrIO).
var (
	ErrConfiguration = errors.New("configuration error")
	ErrSchema        = errors.New("schema error")
	ErrConnectivity  = errors.New("connectivity error")
	ErrIO            = errors.New("io error")
)

// ErrClosed is returned by operations on a closed reader
var ErrClosed = errors.New("reader is closed")

// Error carries the kind of failure and the operation that produced it
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify separates lost connections from other data access failures
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return ErrConnectivity
	default:
		return ErrIO
	}
}

// resolveKind sorts layout resolution failures: a bad table or column is a
// configuration error, a dropped connection stays a connectivity error and
// anything else the probe reports is a schema error
func resolveKind(err error) error {
	switch {
	case errors.Is(err, schema.ErrInvalidTarget):
		return ErrConfiguration
	case classify(err) == ErrConnectivity:
		return ErrConnectivity
	default:
		return ErrSchema
	}
}
