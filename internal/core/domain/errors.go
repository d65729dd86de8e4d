package domain

import (
	"errors"
	"fmt"
	"net"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong username/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTransport marks HTTP and network failures raised by upstream clients
	ErrTransport = errors.New("transport error")

	// ErrPortalOffline indicates the customer portal reported itself unavailable
	ErrPortalOffline = errors.New("portal offline")

	// ErrPortalDisabled indicates a portal-only operation was requested in opendata mode
	ErrPortalDisabled = errors.New("portal mode disabled")

	// ErrTickInProgress indicates an update tick is already executing
	ErrTickInProgress = errors.New("tick already in progress")

	// ErrTaskRunning indicates a background task with the same name is still running
	ErrTaskRunning = errors.New("task already running")

	// ErrTickLocked indicates another instance holds the tick lock
	ErrTickLocked = errors.New("tick lock held by another instance")

	// ErrStaleSnapshot indicates the store already holds a newer snapshot sequence
	ErrStaleSnapshot = errors.New("stored snapshot is newer")

	// ErrNotRunning indicates the coordinator has not been started
	ErrNotRunning = errors.New("coordinator not running")
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// ErrorKindTransport covers HTTP status and network failures.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindUnclassified covers everything else.
	ErrorKindUnclassified ErrorKind = "unclassified"
)

// ClassifyError reports whether err is a transport failure.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTransport) {
		return ErrorKindTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindTransport
	}
	return ErrorKindUnclassified
}

// FetchError is a classified failure of one source during a tick.
type FetchError struct {
	Source Source
	Kind   ErrorKind
	Err    error
}

// NewFetchError wraps err and classifies it.
func NewFetchError(source Source, err error) *FetchError {
	return &FetchError{
		Source: source,
		Kind:   ClassifyError(err),
		Err:    err,
	}
}

func (e *FetchError) Error() string {
	if e.Kind == ErrorKindTransport {
		return fmt.Sprintf("error fetching %s data: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("unexpected error fetching %s data: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPError is returned by upstream clients for non-success responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrTransport) match HTTP failures.
func (e *HTTPError) Unwrap() error {
	return ErrTransport
}

// IsRetryable reports whether the status code is worth retrying.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
