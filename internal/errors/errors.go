// Package errors provides structured error types for chat platform calls.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to report it.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindPermissionDenied Kind = "permission_denied"
	KindTransport        Kind = "transport_failure"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
)

// Sentinel errors for common failure modes.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrTransport        = errors.New("transport failure")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// PlatformError represents a failed call against a chat platform API.
type PlatformError struct {
	Platform   string
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *PlatformError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%s, status %d): %v", e.Platform, e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Is lets errors.Is match a PlatformError against the sentinel of its kind.
func (e *PlatformError) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

// New creates a PlatformError.
func New(platform, op string, kind Kind, err error) *PlatformError {
	return &PlatformError{Platform: platform, Op: op, Kind: kind, Err: err}
}

// WithStatus creates a PlatformError carrying the HTTP status returned by the platform.
func WithStatus(platform, op string, kind Kind, status int, err error) *PlatformError {
	return &PlatformError{Platform: platform, Op: op, Kind: kind, StatusCode: status, Err: err}
}

// KindOf returns the failure kind of err. Context deadlines count as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pErr *PlatformError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	}
	return KindUnknown
}

func sentinel(k Kind) error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindTransport:
		return ErrTransport
	case KindNotFound:
		return ErrNotFound
	case KindInvalidInput:
		return ErrInvalidInput
	}
	return nil
}
