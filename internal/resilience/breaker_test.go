package resilience

import (
	"errors"
	"testing"
	"time"
)

var errGateway = errors.New("gateway unavailable")

func tripBreaker(b *Breaker, failures int) {
	for i := 0; i < failures; i++ {
		_ = b.Execute(func() error { return errGateway })
	}
}

func TestExecutePassesThroughWhenClosed(t *testing.T) {
	b := NewBreaker(3, time.Second)

	called := false
	if err := b.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn should run while closed")
	}
}

func TestRejectsAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Second)
	tripBreaker(b, 3)

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestProbeAfterTimeoutClosesOnSuccess(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	tripBreaker(b, 2)
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen before timeout, got %v", err)
	}

	now = now.Add(2 * time.Second)

	called := false
	if err := b.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if !called {
		t.Fatal("probe should run in half-open")
	}

	b.mu.Lock()
	state := b.state
	b.mu.Unlock()
	if state != stateClosed {
		t.Fatalf("state = %d, want closed after successful probe", state)
	}
}

func TestProbeFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	tripBreaker(b, 2)
	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errGateway })

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after failed probe, got %v", err)
	}
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	tripBreaker(b, 2)
	_ = b.Execute(func() error { return nil })
	tripBreaker(b, 2)

	// Four failures total but never three consecutive.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
