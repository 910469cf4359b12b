package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mpetka/larder/internal/config"
)

// Bulkhead bounds the number of operations in flight against a remote
// dependency so a slow backend cannot exhaust the process.
type Bulkhead struct {
	maxConcurrent  int
	maxQueue       int
	acquireTimeout time.Duration
	semaphore      chan struct{}

	activeCount   atomic.Int32
	queuedCount   atomic.Int32
	rejectedCount atomic.Int64
	totalExecuted atomic.Int64
}

// NewBulkhead creates a bulkhead from configuration, applying defaults for
// zero values.
func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	maxConcurrent := cfg.MaxConcurrent
	maxQueue := cfg.MaxQueue
	acquireTimeout := cfg.AcquireTimeout

	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	if maxQueue <= 0 {
		maxQueue = 50
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 100 * time.Millisecond
	}

	return &Bulkhead{
		maxConcurrent:  maxConcurrent,
		maxQueue:       maxQueue,
		acquireTimeout: acquireTimeout,
		semaphore:      make(chan struct{}, maxConcurrent+maxQueue),
	}
}

// Execute runs a function inside the bulkhead.
func (b *Bulkhead) Execute(fn func() error) error {
	return b.ExecuteCtx(context.Background(), func(ctx context.Context) error {
		return fn()
	})
}

// ExecuteCtx runs a function inside the bulkhead with context.
func (b *Bulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	b.activeCount.Add(1)
	defer b.activeCount.Add(-1)

	err := fn(ctx)
	b.totalExecuted.Add(1)

	return err
}

// ExecuteWithResult runs a function that returns a result inside the bulkhead.
func (b *Bulkhead) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var result any
	err := b.ExecuteCtx(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.semaphore <- struct{}{}:
		return nil
	default:
	}

	if int(b.queuedCount.Load()) >= b.maxQueue {
		b.rejectedCount.Add(1)
		return ErrBulkheadFull
	}

	b.queuedCount.Add(1)
	defer b.queuedCount.Add(-1)

	timeoutCtx, cancel := context.WithTimeout(ctx, b.acquireTimeout)
	defer cancel()

	select {
	case b.semaphore <- struct{}{}:
		return nil
	case <-timeoutCtx.Done():
		b.rejectedCount.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBulkheadTimeout
	}
}

func (b *Bulkhead) release() {
	<-b.semaphore
}

// ActiveCount returns the number of operations currently executing.
func (b *Bulkhead) ActiveCount() int {
	return int(b.activeCount.Load())
}

// QueuedCount returns the number of operations waiting for a slot.
func (b *Bulkhead) QueuedCount() int {
	return int(b.queuedCount.Load())
}

// RejectedCount returns the cumulative number of rejected operations.
func (b *Bulkhead) RejectedCount() int64 {
	return b.rejectedCount.Load()
}

// TotalExecuted returns the cumulative number of completed operations.
func (b *Bulkhead) TotalExecuted() int64 {
	return b.totalExecuted.Load()
}

// BulkheadStats contains bulkhead statistics.
type BulkheadStats struct {
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	TotalExecuted int64
	TotalRejected int64
}

// Stats returns bulkhead statistics.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		MaxConcurrent: b.maxConcurrent,
		MaxQueue:      b.maxQueue,
		Active:        int(b.activeCount.Load()),
		Queued:        int(b.queuedCount.Load()),
		TotalExecuted: b.totalExecuted.Load(),
		TotalRejected: b.rejectedCount.Load(),
	}
}

// DisabledBulkhead is a no-op bulkhead that allows all operations.
type DisabledBulkhead struct{}

// NewDisabledBulkhead creates a disabled bulkhead.
func NewDisabledBulkhead() *DisabledBulkhead {
	return &DisabledBulkhead{}
}

func (b *DisabledBulkhead) Execute(fn func() error) error { return fn() }

func (b *DisabledBulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (b *DisabledBulkhead) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

func (b *DisabledBulkhead) ActiveCount() int     { return 0 }
func (b *DisabledBulkhead) QueuedCount() int     { return 0 }
func (b *DisabledBulkhead) RejectedCount() int64 { return 0 }
func (b *DisabledBulkhead) TotalExecuted() int64 { return 0 }
func (b *DisabledBulkhead) Stats() BulkheadStats { return BulkheadStats{} }
