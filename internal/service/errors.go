package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind tags a MapError.
type ErrorKind string

const (
	// NetworkError: the fetch failed, timed out, or returned a non-success status.
	NetworkError ErrorKind = "NETWORK_ERROR"
	// LoadingError: the fetch succeeded but the payload was malformed or
	// flagged unsuccessful.
	LoadingError ErrorKind = "LOADING_ERROR"
	// ValidationError: the payload decoded but failed its structural schema.
	ValidationError ErrorKind = "VALIDATION_ERROR"
	// NoData: an explicit "nothing here" signal, distinct from an empty list.
	NoData ErrorKind = "NO_DATA"
	// GeolocationError is reserved for device geolocation failures.
	GeolocationError ErrorKind = "GEOLOCATION_ERROR"
)

// Sentinels a PropertySource wraps to select the error kind.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidPayload   = errors.New("payload failed schema validation")
)

// MapError is the typed failure surfaced to map views.
type MapError struct {
	Kind    ErrorKind `json:"type" enum:"NETWORK_ERROR,LOADING_ERROR,VALIDATION_ERROR,NO_DATA,GEOLOCATION_ERROR" doc:"Error kind"`
	Message string    `json:"message" doc:"Human-readable message"`
	Cause   error     `json:"-"`
}

// NewMapError creates a MapError.
func NewMapError(kind ErrorKind, message string, cause error) *MapError {
	return &MapError{Kind: kind, Message: message, Cause: cause}
}

func (e *MapError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MapError) Unwrap() error { return e.Cause }

// IsKind reports whether err is a MapError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *MapError
	return errors.As(err, &me) && me.Kind == kind
}

// classifyFetchError turns a PropertySource error into a MapError. The cause
// is kept so callers can still detect context cancellation.
func classifyFetchError(err error) *MapError {
	var me *MapError
	if errors.As(err, &me) {
		return me
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewMapError(NetworkError, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewMapError(NetworkError, "request cancelled", err)
	case errors.Is(err, ErrInvalidPayload):
		return NewMapError(ValidationError, "property payload failed validation", err)
	case errors.Is(err, ErrMalformedPayload):
		return NewMapError(LoadingError, "property payload could not be loaded", err)
	default:
		return NewMapError(NetworkError, "failed to fetch properties", err)
	}
}
