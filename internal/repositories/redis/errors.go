package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Error implements repositories.RepositoryError for Redis backed stores.
type Error struct {
	op          string
	err         error
	notFound    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing or expired key.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict always reports false; the cart store is last-writer-wins.
func (e *Error) IsConflict() bool {
	return false
}

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// WrapError annotates Redis errors with repository semantics. Context
// cancellations are passed through untouched.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e := &Error{op: op, err: err}
	switch {
	case errors.Is(err, redis.Nil):
		e.notFound = true
	default:
		e.unavailable = true
	}
	return e
}

// NewNotFoundError builds a not-found error without an underlying cause.
func NewNotFoundError(op string, message string) *Error {
	return &Error{op: op, err: errors.New(message), notFound: true}
}
