package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "save", fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "save", fastRetry, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "save", fastRetry, func() error {
		calls++
		return fmt.Errorf("bad: %w", apperrors.ErrInvalidInput)
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "save", fastRetry, func() error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: 20 * time.Millisecond})
	fail := func() error { return errors.New("down") }

	for range 2 {
		cb.Execute(fail)
	}
	if cb.State() != StateOpen || cb.Allow() {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker should let a call through after the cooldown")
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreakerReportsTransitions(t *testing.T) {
	var seen []string
	cb := NewCircuitBreaker("report-cache", CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         5 * time.Millisecond,
		OnStateChange: func(from, to State) {
			seen = append(seen, from.String()+">"+to.String())
		},
	})
	down := errors.New("down")

	cb.Execute(func() error { return down })
	time.Sleep(10 * time.Millisecond)
	cb.Execute(func() error { return down })
	time.Sleep(10 * time.Millisecond)
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return down })
	cb.Reset()

	want := []string{
		"closed>open",
		"open>half-open", "half-open>open",
		"open>half-open", "half-open>closed",
		"closed>open",
		"open>closed",
	}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestCircuitBreakerLimitsHalfOpenProbes(t *testing.T) {
	cb := NewCircuitBreaker("report-cache", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond})
	cb.Execute(func() error { return errors.New("down") })
	time.Sleep(5 * time.Millisecond)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call while half-open: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}
