package resilience

import (
	"context"

	"github.com/mpetka/larder/internal/config"
)

// Policy combines the resilience patterns callers wrap around remote
// calls: bulkhead, retry and circuit breaker.
type Policy struct {
	circuitBreaker CircuitBreakerExecutor
	retry          RetryExecutor
	bulkhead       BulkheadExecutor
}

// CircuitBreakerExecutor defines the circuit breaker surface used by Policy.
type CircuitBreakerExecutor interface {
	Execute(fn func() (any, error)) (any, error)
	Allow() bool
	RecordSuccess()
	RecordFailure()
	State() State
	IsOpen() bool
	SetOnStateChange(fn func(from, to State))
}

// RetryExecutor defines the retry surface used by Policy.
type RetryExecutor interface {
	ExecuteCtx(ctx context.Context, fn func(context.Context) error) error
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
}

// BulkheadExecutor defines the bulkhead surface used by Policy.
type BulkheadExecutor interface {
	ExecuteCtx(ctx context.Context, fn func(context.Context) error) error
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error)
	ActiveCount() int
	QueuedCount() int
	RejectedCount() int64
}

// NewPolicy creates a resilience policy from configuration. Disabled
// patterns are replaced by no-op twins so callers never branch.
func NewPolicy(cfg *config.Config) *Policy {
	p := &Policy{}

	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(cfg.CircuitBreaker)
	} else {
		p.circuitBreaker = NewDisabledCircuitBreaker()
	}

	if cfg.Retry.Enabled {
		p.retry = NewRetryPolicy(cfg.Retry)
	} else {
		p.retry = NewDisabledRetryPolicy()
	}

	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	} else {
		p.bulkhead = NewDisabledBulkhead()
	}

	return p
}

// Execute runs an operation through all patterns, ordered bulkhead ->
// retry -> circuit breaker so each retry attempt counts toward circuit
// state independently. Wrapping retry inside the breaker instead would let
// one failing request burn the whole retry budget as a single breaker
// failure.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return p.bulkhead.ExecuteCtx(ctx, func(ctx context.Context) error {
		return p.retry.ExecuteCtx(ctx, func(ctx context.Context) error {
			_, err := p.circuitBreaker.Execute(func() (any, error) {
				return nil, fn(ctx)
			})
			return err
		})
	})
}

// ExecuteWithResult runs an operation that returns a result. See Execute
// for the ordering rationale.
func (p *Policy) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return p.bulkhead.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		return p.retry.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
			return p.circuitBreaker.Execute(func() (any, error) {
				return fn(ctx)
			})
		})
	})
}

// CircuitBreaker returns the circuit breaker component.
func (p *Policy) CircuitBreaker() CircuitBreakerExecutor {
	return p.circuitBreaker
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (p *Policy) IsCircuitOpen() bool {
	return p.circuitBreaker.IsOpen()
}

// CircuitState returns the current circuit breaker state.
func (p *Policy) CircuitState() State {
	return p.circuitBreaker.State()
}

// SetOnCircuitStateChange sets a callback for circuit state changes.
func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	p.circuitBreaker.SetOnStateChange(fn)
}

// BulkheadStats returns bulkhead occupancy counters.
func (p *Policy) BulkheadStats() (active, queued int, rejected int64) {
	return p.bulkhead.ActiveCount(), p.bulkhead.QueuedCount(), p.bulkhead.RejectedCount()
}

// DisabledPolicy bypasses all resilience patterns.
type DisabledPolicy struct{}

// NewDisabledPolicy creates a disabled policy.
func NewDisabledPolicy() *DisabledPolicy {
	return &DisabledPolicy{}
}

func (p *DisabledPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (p *DisabledPolicy) ExecuteWithResult(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

func (p *DisabledPolicy) IsCircuitOpen() bool                              { return false }
func (p *DisabledPolicy) CircuitState() State                              { return StateClosed }
func (p *DisabledPolicy) SetOnCircuitStateChange(fn func(from, to State))  {}
func (p *DisabledPolicy) BulkheadStats() (active, queued int, rejected int64) { return 0, 0, 0 }
