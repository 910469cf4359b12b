package types

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestCacheError(t *testing.T) {
	inner := errors.New("connection refused")

	withKey := NewCacheError("get", "user:1", "redis", inner)
	if !strings.Contains(withKey.Error(), "user:1") || !strings.Contains(withKey.Error(), "redis") {
		t.Errorf("Error() = %q, missing key or backend", withKey.Error())
	}
	if !errors.Is(withKey, inner) {
		t.Error("errors.Is does not see through CacheError")
	}

	withoutKey := NewCacheError("clear", "", "memory", inner)
	if strings.Contains(withoutKey.Error(), "[]") {
		t.Errorf("Error() = %q, renders empty key brackets", withoutKey.Error())
	}
}

func TestSentinelHelpers(t *testing.T) {
	wrapped := fmt.Errorf("op failed: %w", ErrCacheMiss)
	if !IsCacheMiss(wrapped) {
		t.Error("IsCacheMiss missed a wrapped miss")
	}
	if IsCacheMiss(ErrCircuitOpen) {
		t.Error("IsCacheMiss matched a different sentinel")
	}
	if !IsCircuitOpen(fmt.Errorf("gate: %w", ErrCircuitOpen)) {
		t.Error("IsCircuitOpen missed a wrapped open circuit")
	}
	if !IsBackendUnavailable(NewCacheError("get", "k", "redis", ErrBackendUnavailable)) {
		t.Error("IsBackendUnavailable missed a CacheError wrap")
	}
	if !IsPoolExhausted(fmt.Errorf("pool: %w", ErrPoolExhausted)) {
		t.Error("IsPoolExhausted missed a wrapped exhaustion")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "cache miss", err: ErrCacheMiss, want: false},
		{name: "circuit open", err: ErrCircuitOpen, want: false},
		{name: "rate limited", err: ErrRateLimited, want: false},
		{name: "closed", err: ErrClosed, want: false},
		{name: "pool closed", err: ErrPoolClosed, want: false},
		{name: "invalid key", err: ErrInvalidKey, want: false},
		{name: "invalid config", err: ErrInvalidConfig, want: false},
		{name: "serialization", err: ErrSerialization, want: false},
		{name: "wrapped miss", err: NewCacheError("get", "k", "memory", ErrCacheMiss), want: false},
		{name: "network error", err: syscall.ECONNREFUSED, want: true},
		{name: "unknown error", err: errors.New("boom"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
