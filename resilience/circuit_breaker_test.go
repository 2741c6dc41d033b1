package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/weavely/weave/resilience"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker("test", 3, time.Minute)
	failure := errors.New("backend down")

	for range 2 {
		cb.RecordResult(failure)
	}
	if !cb.Allow() {
		t.Fatal("breaker opened before reaching the threshold")
	}

	cb.RecordResult(failure)
	if cb.State() != resilience.CircuitOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker allowed a call")
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker("test", 3, time.Minute)
	failure := errors.New("backend down")

	cb.RecordResult(failure)
	cb.RecordResult(failure)
	cb.RecordResult(nil)
	cb.RecordResult(failure)
	cb.RecordResult(failure)

	if cb.State() != resilience.CircuitClosed {
		t.Errorf("state = %v, want closed after interleaved success", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker("test", 1, 10*time.Millisecond)
	cb.RecordResult(errors.New("backend down"))

	if cb.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected a probe call after the reset timeout")
	}
	if cb.State() != resilience.CircuitHalfOpen {
		t.Errorf("state = %v, want half-open", cb.State())
	}

	cb.RecordResult(nil)
	if cb.State() != resilience.CircuitClosed {
		t.Errorf("state = %v, want closed after successful probe", cb.State())
	}
}
