// Package errors defines the sentinel errors shared by the repository,
// service and transport layers. Callers wrap them with fmt.Errorf("%w: ...")
// and match them with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = fmt.Errorf("validation error")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidState = fmt.Errorf("invalid state")
	ErrConflict     = fmt.Errorf("conflict")
	// ErrExpired is returned when an access code exists but is past its expiry.
	ErrExpired = fmt.Errorf("expired")
	// ErrRateLimited is returned when a caller exceeded a request quota.
	ErrRateLimited = fmt.Errorf("rate limited")
)

// Kind returns a stable, client-facing name for the taxonomy member err
// belongs to, or "internal" when it matches none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
