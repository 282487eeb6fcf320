package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardOpensAfterFailures(t *testing.T) {
	g := NewGuard(Config{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	})

	errRemote := errors.New("drive unavailable")
	calls := 0
	fail := func(context.Context) error {
		calls++
		return errRemote
	}

	for i := 0; i < 2; i++ {
		if err := g.Do(context.Background(), "drive.upload", fail); !errors.Is(err, errRemote) {
			t.Fatalf("Expected remote error on call %d, got %v", i, err)
		}
	}

	err := g.Do(context.Background(), "drive.upload", fail)
	if !IsOpen(err) {
		t.Fatalf("Expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected open breaker to skip the call, got %d calls", calls)
	}

	// breakers are per operation
	if err := g.Do(context.Background(), "drive.list", func(context.Context) error { return nil }); err != nil {
		t.Errorf("Expected independent operation to succeed, got %v", err)
	}
}

func TestGuardIgnoresCancellation(t *testing.T) {
	g := NewGuard(Config{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		err := g.Do(context.Background(), "op", func(context.Context) error { return context.Canceled })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected cancellation to pass through, got %v", err)
		}
	}
	if err := g.Do(context.Background(), "op", func(context.Context) error { return nil }); err != nil {
		t.Errorf("Expected breaker to stay closed, got %v", err)
	}
}

func TestGuardDisabledAndNil(t *testing.T) {
	tests := []struct {
		name  string
		guard *Guard
	}{
		{"nil guard", nil},
		{"disabled guard", NewGuard(Config{Enabled: false})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			for i := 0; i < 10; i++ {
				_ = tt.guard.Do(context.Background(), "op", func(context.Context) error {
					calls++
					return errors.New("boom")
				})
			}
			if calls != 10 {
				t.Errorf("Expected every call to run, got %d", calls)
			}
		})
	}
}

func TestGuardCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewGuard(DefaultConfig()).Do(ctx, "op", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("Expected cancellation before call, got %v (called=%v)", err, called)
	}
}
