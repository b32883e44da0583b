// Package source fetches raw cost tables from files, the Azure Cost
// Management API, S3 exports and SQLite databases.
//
// Every failure is returned as *Error, which matches ErrUnavailable. A
// source never reports a failure by returning an empty table.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/costlens/internal/ingest"
)

// ErrUnavailable matches every *Error.
var ErrUnavailable = errors.New("cost data source unavailable")

// Query bounds a fetch. Zero dates are open; an empty Scope uses the
// source's configured default.
type Query struct {
	Scope string
	From  time.Time
	To    time.Time
}

// Source yields raw cost tables.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (ingest.RawTable, error)
}

// Error is a data-source failure.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrUnavailable as a match.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

// fail wraps err as *Error unless it already is one.
func fail(name string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Source: name, Err: err}
}
