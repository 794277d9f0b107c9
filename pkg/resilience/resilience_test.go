package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	var transitions []State
	cb.Notify(func(name string, from, to State) {
		if name != "test" {
			t.Errorf("name = %q", name)
		}
		transitions = append(transitions, to)
	})

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	cb.Execute(fail)
	if cb.GetState() != StateClosed {
		t.Fatal("opened before threshold")
	}
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatal("did not open at threshold")
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker err = %v", err)
	}

	now = now.Add(time.Second)
	if err := cb.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatal("failed probe should reopen")
	}

	now = now.Add(time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatal("successful probe should close")
	}

	want := []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}

	c := cb.Counts()
	if c.TotalFailures != 3 || c.Rejected != 1 || c.ConsecutiveFailures != 0 {
		t.Errorf("counts = %+v", c)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("reset", CircuitBreakerConfig{FailureThreshold: 1})
	cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatal("expected open")
	}
	cb.Reset()
	if cb.GetState() != StateClosed || cb.Counts().ConsecutiveFailures != 0 {
		t.Errorf("after reset: %+v", cb.Counts())
	}
	if StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Error("State.String mismatch")
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Retry(context.Background(), "flaky", cfg, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "always", cfg, func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "permanent", cfg, func() error {
		calls++
		return Permanent(errBoom)
	})
	if err != errBoom || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func() error {
		return errBoom
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestBackoffBounds(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}.withDefaults()
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(attempt, cfg)
		if d <= 0 || d > time.Second {
			t.Errorf("attempt %d: delay %v out of bounds", attempt, d)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}

	if err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return errBoom }); err != errBoom {
		t.Errorf("err = %v", err)
	}
	if err := WithTimeout(context.Background(), 0, "direct", func(context.Context) error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
