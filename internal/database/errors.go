package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// ErrNoSuchRecord is returned by updates that matched no row.
var ErrNoSuchRecord = errors.New("no such record")

// ErrSelfMerge is returned when a person is merged into itself.
var ErrSelfMerge = errors.New("cannot merge a person into itself")

// ErrorKind classifies a failed query.
type ErrorKind int

const (
	// KindQuery is a failure reported by the database for the statement.
	KindQuery ErrorKind = iota
	// KindConnection is a failure to reach or keep the database connection.
	KindConnection
	// KindCancelled means the caller's context ended first.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindCancelled:
		return "cancelled"
	default:
		return "query"
	}
}

// QueryError wraps a database failure with the operation that caused it.
type QueryError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// WrapError classifies err and wraps it as a *QueryError. Nil and
// ErrNoSuchRecord pass through unchanged.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNoSuchRecord) || errors.Is(err, ErrSelfMerge) {
		return err
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return KindConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}
	return KindQuery
}

// IsCancelled reports whether err is a query abandoned because its context ended.
func IsCancelled(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == KindCancelled
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
