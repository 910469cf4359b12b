package resilience

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/mpetka/larder/internal/types"
)

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ETIMEDOUT,
		os.ErrDeadlineExceeded,
		errors.New("driver: bad connection"),
		errors.New("write tcp: broken pipe"),
		errors.New("pq: deadlock detected"),
		errors.New("something unrecognized"),
		types.ErrBackendUnavailable,
		fmt.Errorf("wrapped: %w", syscall.ECONNRESET),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	}

	notRetryable := []error{
		nil,
		types.ErrCacheMiss,
		types.ErrCircuitOpen,
		types.ErrRateLimited,
		types.ErrInvalidKey,
		types.ErrInvalidConfig,
		types.ErrClosed,
		types.ErrSerialization,
		ErrBulkheadFull,
	}
	for _, err := range notRetryable {
		if IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = true, want false", err)
		}
	}
}

func TestIsCircuitOpen(t *testing.T) {
	if !IsCircuitOpen(fmt.Errorf("call failed: %w", ErrCircuitOpen)) {
		t.Error("IsCircuitOpen() = false for wrapped sentinel, want true")
	}
	if IsCircuitOpen(errors.New("other")) {
		t.Error("IsCircuitOpen() = true for unrelated error, want false")
	}
}

func TestIsBulkheadError(t *testing.T) {
	if !IsBulkheadError(ErrBulkheadFull) || !IsBulkheadError(ErrBulkheadTimeout) {
		t.Error("IsBulkheadError() = false for bulkhead sentinels, want true")
	}
	if IsBulkheadError(types.ErrCacheMiss) {
		t.Error("IsBulkheadError() = true for cache miss, want false")
	}
}
