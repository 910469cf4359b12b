package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
)

// RateLimiter is a per-key sliding-window admission gate. Each key keeps
// the timestamps of its recent calls; a call is admitted iff fewer than
// maxRequests timestamps remain inside the window after pruning.
type RateLimiter struct {
	maxRequests  int
	window       time.Duration
	idleEviction time.Duration
	clock        clock.Clock

	mu      sync.Mutex
	windows map[string][]time.Time

	pruneCancel context.CancelFunc
	pruneWg     sync.WaitGroup

	allowed atomic.Int64
	denied  atomic.Int64
}

// NewRateLimiter creates a rate limiter from configuration, applying
// defaults for zero values.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return NewRateLimiterWithClock(cfg, clock.New())
}

// NewRateLimiterWithClock creates a rate limiter with an injected clock.
func NewRateLimiterWithClock(cfg config.RateLimitConfig, clk clock.Clock) *RateLimiter {
	rl := &RateLimiter{
		maxRequests:  cfg.MaxRequests,
		window:       cfg.Window,
		idleEviction: cfg.IdleEviction,
		clock:        clk,
		windows:      make(map[string][]time.Time),
	}

	if rl.maxRequests <= 0 {
		rl.maxRequests = 100
	}
	if rl.window <= 0 {
		rl.window = time.Minute
	}
	if rl.idleEviction <= 0 {
		rl.idleEviction = 5 * rl.window
	}

	return rl
}

// Allow prunes the key's window and admits the call iff the remaining
// count is below capacity, recording the call on admission.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	calls := pruneBefore(rl.windows[key], cutoff)

	if len(calls) >= rl.maxRequests {
		rl.windows[key] = calls
		rl.denied.Add(1)
		return false
	}

	rl.windows[key] = append(calls, now)
	rl.allowed.Add(1)
	return true
}

// Remaining returns how many more calls the key may make in the current
// window.
func (rl *RateLimiter) Remaining(key string) int {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	calls := pruneBefore(rl.windows[key], now.Add(-rl.window))
	rl.windows[key] = calls

	remaining := rl.maxRequests - len(calls)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAfter returns how long until the key's oldest retained call leaves
// the window, i.e. when the next slot frees up. Zero means a call would be
// admitted now.
func (rl *RateLimiter) ResetAfter(key string) time.Duration {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	calls := pruneBefore(rl.windows[key], now.Add(-rl.window))
	rl.windows[key] = calls

	if len(calls) < rl.maxRequests {
		return 0
	}

	return calls[0].Add(rl.window).Sub(now)
}

// StartPruning launches a background loop that evicts idle key windows
// every interval so abandoned keys do not accumulate. Calling it on a
// running limiter is a no-op.
func (rl *RateLimiter) StartPruning(ctx context.Context, interval time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.pruneCancel != nil {
		return
	}
	if interval <= 0 {
		interval = rl.idleEviction
	}

	ctx, cancel := context.WithCancel(ctx)
	rl.pruneCancel = cancel
	rl.pruneWg.Add(1)
	go rl.pruneLoop(ctx, interval)
}

func (rl *RateLimiter) pruneLoop(ctx context.Context, interval time.Duration) {
	defer rl.pruneWg.Done()

	ticker := rl.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.PruneIdle()
		}
	}
}

// StopPruning cancels the pruning loop and waits for it to exit.
func (rl *RateLimiter) StopPruning() {
	rl.mu.Lock()
	cancel := rl.pruneCancel
	rl.pruneCancel = nil
	rl.mu.Unlock()

	if cancel != nil {
		cancel()
		rl.pruneWg.Wait()
	}
}

// PruneIdle drops windows whose newest call is older than the idle
// eviction horizon.
func (rl *RateLimiter) PruneIdle() int {
	horizon := rl.clock.Now().Add(-rl.idleEviction)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, calls := range rl.windows {
		if len(calls) == 0 || calls[len(calls)-1].Before(horizon) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// Stats returns the cumulative allowed/denied counts.
func (rl *RateLimiter) Stats() (allowed, denied int64) {
	return rl.allowed.Load(), rl.denied.Load()
}

// KeyCount returns the number of keys currently tracked.
func (rl *RateLimiter) KeyCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// pruneBefore drops timestamps at or before the cutoff. Timestamps are
// appended in order, so the first retained index is found by a linear scan
// from the front.
func pruneBefore(calls []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(calls) && !calls[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return calls
	}
	return append([]time.Time(nil), calls[i:]...)
}

// DisabledRateLimiter admits every call.
type DisabledRateLimiter struct{}

// NewDisabledRateLimiter creates a disabled rate limiter.
func NewDisabledRateLimiter() *DisabledRateLimiter {
	return &DisabledRateLimiter{}
}

func (rl *DisabledRateLimiter) Allow(key string) bool                 { return true }
func (rl *DisabledRateLimiter) Remaining(key string) int              { return int(^uint(0) >> 1) }
func (rl *DisabledRateLimiter) ResetAfter(key string) time.Duration   { return 0 }
func (rl *DisabledRateLimiter) PruneIdle() int                        { return 0 }
func (rl *DisabledRateLimiter) Stats() (allowed, denied int64)        { return 0, 0 }
func (rl *DisabledRateLimiter) KeyCount() int                         { return 0 }
