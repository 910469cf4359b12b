// Package resilience provides fault tolerance patterns for cache and pool
// operations: retry with backoff, circuit breaking, sliding-window rate
// limiting and bulkheading.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
)

// State is the circuit breaker state.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker gates calls to a failing dependency. It opens after
// FailureThreshold consecutive failures, fast-fails while open, admits a
// bounded number of trial calls once RecoveryTimeout has elapsed, and
// closes again after SuccessThreshold trial successes.
type CircuitBreaker struct {
	name string

	failureThreshold    int
	successThreshold    int
	recoveryTimeout     time.Duration
	halfOpenMaxRequests int

	clock clock.Clock
	state atomic.Int32

	mu               sync.Mutex
	consecutiveFails int
	consecutiveSuccs int
	halfOpenRequests int
	openedAt         time.Time

	onStateChange func(from, to State)
}

// stateTransition defers callback invocation until after the mutex is
// released so callbacks may read breaker state without deadlocking.
type stateTransition struct {
	from     State
	to       State
	callback func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker from configuration, applying
// defaults for zero values.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	return NewCircuitBreakerWithClock(cfg, clock.New())
}

// NewCircuitBreakerWithClock creates a circuit breaker with an injected
// clock. Tests use a mock clock to step through the recovery timeout.
func NewCircuitBreakerWithClock(cfg config.CircuitBreakerConfig, clk clock.Clock) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                "remote",
		failureThreshold:    cfg.FailureThreshold,
		successThreshold:    cfg.SuccessThreshold,
		recoveryTimeout:     cfg.RecoveryTimeout,
		halfOpenMaxRequests: cfg.HalfOpenMaxRequests,
		clock:               clk,
	}

	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 2
	}
	if cb.recoveryTimeout <= 0 {
		cb.recoveryTimeout = 30 * time.Second
	}
	if cb.halfOpenMaxRequests <= 0 {
		cb.halfOpenMaxRequests = 3
	}

	cb.state.Store(int32(StateClosed))

	return cb
}

// Execute runs a function through the circuit breaker. While open and
// before the recovery timeout the wrapped function is not invoked.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	if !cb.Allow() {
		return nil, ErrCircuitOpen
	}

	result, err := fn()

	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}

	return result, err
}

// Allow checks if a request should pass through the gate.
func (cb *CircuitBreaker) Allow() bool {
	state := State(cb.state.Load())

	switch state {
	case StateClosed:
		return true

	case StateOpen:
		var transition *stateTransition
		var allowed bool

		cb.mu.Lock()
		if cb.clock.Since(cb.openedAt) >= cb.recoveryTimeout {
			transition = cb.transitionTo(StateHalfOpen)
			cb.halfOpenRequests = 1
			allowed = true
		}
		cb.mu.Unlock()

		transition.invoke()
		return allowed

	case StateHalfOpen:
		cb.mu.Lock()
		allowed := cb.halfOpenRequests < cb.halfOpenMaxRequests
		if allowed {
			cb.halfOpenRequests++
		}
		cb.mu.Unlock()
		return allowed

	default:
		return true
	}
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails = 0

	case StateHalfOpen:
		cb.consecutiveSuccs++
		if cb.consecutiveSuccs >= cb.successThreshold {
			transition = cb.transitionTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	transition.invoke()
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.failureThreshold {
			transition = cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		transition = cb.transitionTo(StateOpen)
	}
	cb.mu.Unlock()

	transition.invoke()
}

// transitionTo changes the breaker state. Must be called while holding the
// mutex; the returned transition (if any) MUST be invoked after releasing it.
func (cb *CircuitBreaker) transitionTo(newState State) *stateTransition {
	oldState := State(cb.state.Load())
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		cb.consecutiveFails = 0
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0

	case StateOpen:
		cb.openedAt = cb.clock.Now()
		cb.consecutiveSuccs = 0

	case StateHalfOpen:
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0
	}

	cb.state.Store(int32(newState))

	if cb.onStateChange != nil {
		return &stateTransition{from: oldState, to: newState, callback: cb.onStateChange}
	}
	return nil
}

func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.from, t.to)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// IsOpen returns true if the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// IsClosed returns true if the circuit is closed.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == StateClosed
}

// IsHalfOpen returns true if the circuit is half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.State() == StateHalfOpen
}

// SetOnStateChange sets a callback for state changes. The callback runs
// synchronously after the transition completes, outside the breaker lock,
// and should be fast (logging, metrics).
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset returns the breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.consecutiveSuccs = 0
	cb.halfOpenRequests = 0
	cb.state.Store(int32(StateClosed))
}

// CircuitBreakerStats contains circuit breaker statistics.
type CircuitBreakerStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.State(),
		ConsecutiveFails: cb.consecutiveFails,
		ConsecutiveSuccs: cb.consecutiveSuccs,
		HalfOpenRequests: cb.halfOpenRequests,
	}
}

// DisabledCircuitBreaker is a no-op circuit breaker that allows all requests.
type DisabledCircuitBreaker struct{}

// NewDisabledCircuitBreaker creates a disabled circuit breaker.
func NewDisabledCircuitBreaker() *DisabledCircuitBreaker {
	return &DisabledCircuitBreaker{}
}

func (cb *DisabledCircuitBreaker) Execute(fn func() (any, error)) (any, error) { return fn() }
func (cb *DisabledCircuitBreaker) Allow() bool                                 { return true }
func (cb *DisabledCircuitBreaker) RecordSuccess()                              {}
func (cb *DisabledCircuitBreaker) RecordFailure()                              {}
func (cb *DisabledCircuitBreaker) State() State                                { return StateClosed }
func (cb *DisabledCircuitBreaker) IsOpen() bool                                { return false }
func (cb *DisabledCircuitBreaker) IsClosed() bool                              { return true }
func (cb *DisabledCircuitBreaker) IsHalfOpen() bool                            { return false }
func (cb *DisabledCircuitBreaker) Reset()                                      {}
func (cb *DisabledCircuitBreaker) SetOnStateChange(fn func(from, to State))    {}
