package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsRetryable_ExplicitRetryable(t *testing.T) {
	err := Retryable(errors.New("server overloaded"), 503)
	if !IsRetryable(err) {
		t.Error("expected RetryableError to be retryable")
	}
}

func TestIsRetryable_WrappedRetryable(t *testing.T) {
	inner := Retryable(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("api call failed: %w", inner)
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
}

func TestIsRetryable_NilError(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error should not be retryable")
	}
}

func TestIsRetryable_RegularError(t *testing.T) {
	if IsRetryable(errors.New("invalid input: missing field")) {
		t.Error("regular error should not be retryable")
	}
}

func TestIsRetryable_ConnectionErrors(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("write tcp: %w", syscall.ECONNRESET),
		fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
	} {
		if !IsRetryable(err) {
			t.Errorf("expected %v to be retryable", err)
		}
	}
}

func TestIsRetryable_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsRetryable(err) {
		t.Error("network timeout should be retryable")
	}
}

func TestIsRetryable_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range patterns {
		if !IsRetryable(errors.New(p)) {
			t.Errorf("expected %q to be retryable", p)
		}
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !RetryableStatus(code) {
			t.Errorf("expected HTTP %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 405, 409, 422} {
		if RetryableStatus(code) {
			t.Errorf("expected HTTP %d to NOT be retryable", code)
		}
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	re := Retryable(inner, 500)

	if !errors.Is(re, inner) {
		t.Error("RetryableError.Unwrap should return the inner error")
	}
	if re.StatusCode != 500 {
		t.Errorf("expected StatusCode 500, got %d", re.StatusCode)
	}
}
