package resilience

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/mpetka/larder/internal/types"
)

// Re-export gate errors from the types package so callers inside this
// package can use resilience.ErrCircuitOpen etc.
var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrRateLimited     = types.ErrRateLimited
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsBulkheadError returns true if the error is a bulkhead rejection.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable determines whether an error is transient and worth another
// attempt. Gate rejections and permanent errors surface immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if !types.IsRetryable(err) {
		return false
	}

	if IsBulkheadError(err) {
		return false
	}

	// Syscall sentinels before the net.Error check: syscall.Errno also
	// implements net.Error but reports Timeout() false for refused and
	// reset connections.
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// Driver errors that only carry a message.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "deadlock") {
		return true
	}

	// Assume unknown errors are transient so the retry budget, not the
	// first blip, decides the outcome.
	return true
}
