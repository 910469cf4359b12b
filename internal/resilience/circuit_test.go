package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
)

func testBreakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:             true,
		FailureThreshold:    3,
		SuccessThreshold:    2,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
}

func failingCall() (any, error) { return nil, errors.New("backend down") }
func okCall() (any, error)      { return "ok", nil }

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig())

	cb.Execute(failingCall)
	cb.Execute(failingCall)
	if !cb.IsClosed() {
		t.Fatal("breaker opened before the failure threshold")
	}

	cb.Execute(failingCall)
	if !cb.IsOpen() {
		t.Fatal("breaker still closed at the failure threshold")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig())

	cb.Execute(failingCall)
	cb.Execute(failingCall)
	cb.Execute(okCall)
	cb.Execute(failingCall)
	cb.Execute(failingCall)

	if !cb.IsClosed() {
		t.Error("breaker opened although failures were not consecutive")
	}
}

func TestCircuitBreakerFastFailsWhileOpen(t *testing.T) {
	mock := clock.NewMock()
	cb := NewCircuitBreakerWithClock(testBreakerConfig(), mock)

	for i := 0; i < 3; i++ {
		cb.Execute(failingCall)
	}

	calls := 0
	_, err := cb.Execute(func() (any, error) {
		calls++
		return nil, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("wrapped function called %d times while open, want 0", calls)
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	mock := clock.NewMock()
	cb := NewCircuitBreakerWithClock(testBreakerConfig(), mock)

	for i := 0; i < 3; i++ {
		cb.Execute(failingCall)
	}

	t.Run("stays open before the recovery timeout", func(t *testing.T) {
		mock.Add(29 * time.Second)
		if cb.Allow() {
			t.Error("Allow() = true before recovery timeout, want false")
		}
	})

	t.Run("admits a trial after the timeout", func(t *testing.T) {
		mock.Add(2 * time.Second)
		if !cb.Allow() {
			t.Fatal("Allow() = false after recovery timeout, want true")
		}
		if !cb.IsHalfOpen() {
			t.Errorf("State() = %v, want half-open", cb.State())
		}
	})

	t.Run("bounds concurrent trials", func(t *testing.T) {
		// One trial admitted by the transition, one budget slot remains.
		if !cb.Allow() {
			t.Fatal("second trial rejected, want admitted")
		}
		if cb.Allow() {
			t.Error("third trial admitted beyond the half-open budget")
		}
	})

	t.Run("closes after enough trial successes", func(t *testing.T) {
		cb.RecordSuccess()
		if !cb.IsHalfOpen() {
			t.Fatalf("State() = %v after one success, want half-open", cb.State())
		}
		cb.RecordSuccess()
		if !cb.IsClosed() {
			t.Errorf("State() = %v after success threshold, want closed", cb.State())
		}
	})
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	mock := clock.NewMock()
	cb := NewCircuitBreakerWithClock(testBreakerConfig(), mock)

	for i := 0; i < 3; i++ {
		cb.Execute(failingCall)
	}
	mock.Add(31 * time.Second)

	if !cb.Allow() {
		t.Fatal("Allow() = false after recovery timeout")
	}
	cb.RecordFailure()

	if !cb.IsOpen() {
		t.Errorf("State() = %v after trial failure, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("Allow() = true immediately after reopening, want false")
	}
}

func TestCircuitBreakerStateChangeCallback(t *testing.T) {
	mock := clock.NewMock()
	cb := NewCircuitBreakerWithClock(testBreakerConfig(), mock)

	var transitions []string
	cb.SetOnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		cb.Execute(failingCall)
	}
	mock.Add(31 * time.Second)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(failingCall)
	}
	if !cb.IsOpen() {
		t.Fatal("breaker not open before reset")
	}

	cb.Reset()
	if !cb.IsClosed() {
		t.Error("State() != closed after Reset()")
	}
	if _, err := cb.Execute(okCall); err != nil {
		t.Errorf("Execute() error = %v after reset", err)
	}
}

func TestDisabledCircuitBreaker(t *testing.T) {
	cb := NewDisabledCircuitBreaker()

	for i := 0; i < 10; i++ {
		cb.Execute(failingCall)
	}
	if !cb.Allow() {
		t.Error("Allow() = false, want always true")
	}
	if cb.IsOpen() {
		t.Error("IsOpen() = true, want false")
	}
}
