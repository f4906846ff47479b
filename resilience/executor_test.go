package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_NoGuards(t *testing.T) {
	e := NewExecutor()

	if err := e.Execute(context.Background(), fail); err != errBoom {
		t.Errorf("Execute() = %v, want errBoom", err)
	}
	if e.CircuitBreaker() != nil || e.Bulkhead() != nil {
		t.Error("empty executor should have no guards")
	}
}

func TestNewExecutorFromConfig(t *testing.T) {
	e := NewExecutorFromConfig(ExecutorConfig{
		Name:          "ocsp",
		Timeout:       time.Second,
		MaxFailures:   2,
		MaxConcurrent: 4,
	})

	if e.CircuitBreaker() == nil || e.Bulkhead() == nil || e.timeout == nil {
		t.Fatal("all guards should be configured")
	}
	if e.Bulkhead().Metrics().MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", e.Bulkhead().Metrics().MaxConcurrent)
	}
}

func TestExecutor_TimeoutCountsAsFailure(t *testing.T) {
	e := NewExecutorFromConfig(ExecutorConfig{
		Timeout:      10 * time.Millisecond,
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	ctx := context.Background()
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	for i := 0; i < 2; i++ {
		if err := e.Execute(ctx, slow); err != ErrTimeout {
			t.Fatalf("Execute() #%d = %v, want ErrTimeout", i+1, err)
		}
	}

	if err := e.Execute(ctx, succeed); err != ErrCircuitOpen {
		t.Errorf("Execute() after timeouts = %v, want ErrCircuitOpen", err)
	}
	if !IsRejection(ErrCircuitOpen) {
		t.Error("IsRejection(ErrCircuitOpen) = false")
	}
}

func TestExecutor_BulkheadOutermost(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	e := NewExecutor(WithBulkhead(b), WithCircuitBreaker(cb))

	_ = b.Acquire(context.Background())
	defer b.Release()

	if err := e.Execute(context.Background(), succeed); err != ErrBulkheadFull {
		t.Fatalf("Execute() = %v, want ErrBulkheadFull", err)
	}
	if cb.State() != StateClosed {
		t.Error("a bulkhead rejection must not reach the circuit breaker")
	}
}

func TestCall(t *testing.T) {
	e := NewExecutorFromConfig(ExecutorConfig{Timeout: time.Second})

	got, err := Call(context.Background(), e, func(context.Context) (string, error) {
		return "good", nil
	})
	if err != nil || got != "good" {
		t.Errorf("Call() = (%q, %v), want (good, nil)", got, err)
	}

	got, err = Call(context.Background(), e, func(context.Context) (string, error) {
		return "partial", errBoom
	})
	if !errors.Is(err, errBoom) || got != "" {
		t.Errorf("Call() = (%q, %v), want zero value and errBoom", got, err)
	}

	n, err := Call(context.Background(), nil, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || n != 7 {
		t.Errorf("Call(nil executor) = (%d, %v)", n, err)
	}
}
