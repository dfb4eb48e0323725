package tracker

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the provider client, the stores, the polling engine and the API.
var (
	// ErrInvalidInput marks a blank or malformed handle, id or request field. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks semantic absence, e.g. a profile that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks an upstream 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransientEmpty marks a successful upstream call that returned no usable data.
	ErrTransientEmpty = errors.New("upstream returned no usable data")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrLimitReached marks an owner that already holds the maximum number of trackers.
	ErrLimitReached = errors.New("max trackers reached")
	// ErrIneligible marks an account that may not be tracked.
	ErrIneligible = errors.New("account is not eligible for tracking")
	// ErrUnauthorized marks missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable marks an unreachable persistence collaborator.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// UpstreamError is the single normalized shape of a failed call to an external provider.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

// Error implements error.
func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error: status %d", e.Status)
	}
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Message)
}

// Unwrap exposes the classified cause (ErrNotFound, ErrRateLimited, transport errors).
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError builds an UpstreamError, classifying 404 as ErrNotFound and 429 as ErrRateLimited.
func NewUpstreamError(status int, message string) *UpstreamError {
	ue := &UpstreamError{Status: status, Message: message}
	switch status {
	case http.StatusNotFound:
		ue.Err = ErrNotFound
	case http.StatusTooManyRequests:
		ue.Err = ErrRateLimited
	}
	return ue
}

// Ineligible wraps ErrIneligible with a user-facing reason.
func Ineligible(reason string) error {
	return fmt.Errorf("%w: %s", ErrIneligible, reason)
}

// Invalid wraps ErrInvalidInput with a user-facing reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
