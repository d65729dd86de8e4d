package domain

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrForbidden", ErrForbidden, "forbidden"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrTransport", ErrTransport, "transport error"},
		{"ErrPortalOffline", ErrPortalOffline, "portal offline"},
		{"ErrTickInProgress", ErrTickInProgress, "tick already in progress"},
		{"ErrTaskRunning", ErrTaskRunning, "task already running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrServiceUnavailable,
		ErrTransport,
		ErrPortalOffline,
		ErrPortalDisabled,
		ErrTickInProgress,
		ErrTaskRunning,
		ErrNotRunning,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"transport sentinel", ErrTransport, ErrorKindTransport},
		{"wrapped transport", fmt.Errorf("get customer: %w", ErrTransport), ErrorKindTransport},
		{"http error", &HTTPError{Method: "GET", URL: "/x", StatusCode: 502}, ErrorKindTransport},
		{"net error", fmt.Errorf("dial: %w", timeoutError{}), ErrorKindTransport},
		{"other", errors.New("contract not found in account"), ErrorKindUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFetchError(t *testing.T) {
	httpErr := &HTTPError{Method: "GET", URL: "https://portal/x", StatusCode: 503}
	fe := NewFetchError(SourcePortal, fmt.Errorf("fetch outages: %w", httpErr))

	if fe.Kind != ErrorKindTransport {
		t.Errorf("expected transport kind, got %q", fe.Kind)
	}
	if !errors.Is(fe, ErrTransport) {
		t.Error("expected FetchError to unwrap to ErrTransport")
	}
	var target *HTTPError
	if !errors.As(fe, &target) || target.StatusCode != 503 {
		t.Error("expected FetchError to expose the HTTPError")
	}
	if got := fe.Error(); got != "error fetching portal data: fetch outages: GET https://portal/x: status 503" {
		t.Errorf("unexpected message %q", got)
	}

	other := NewFetchError(SourcePortal, errors.New("boom"))
	if got := other.Error(); got != "unexpected error fetching portal data: boom" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestHTTPError_IsRetryable(t *testing.T) {
	for code, want := range map[int]bool{400: false, 401: false, 404: false, 429: true, 500: true, 503: true} {
		e := &HTTPError{StatusCode: code}
		if e.IsRetryable() != want {
			t.Errorf("status %d: expected retryable=%v", code, want)
		}
	}
}
