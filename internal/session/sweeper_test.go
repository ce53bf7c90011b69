package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"voice-journal/backend/internal/session/domain"
)

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewSweeper(func(context.Context) (domain.SweepResult, error) {
		if calls.Add(1) >= 3 {
			cancel()
		}
		return domain.SweepResult{Deleted: 1}, nil
	}, time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := calls.Load(); n < 3 {
		t.Errorf("sweep calls = %d, want >= 3", n)
	}
}

func TestSweeper_ContinuesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewSweeper(func(context.Context) (domain.SweepResult, error) {
		if calls.Add(1) >= 2 {
			cancel()
		}
		return domain.SweepResult{}, errors.New("db down")
	}, time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := calls.Load(); n < 2 {
		t.Errorf("sweep calls = %d, want >= 2 (failure must not stop the loop)", n)
	}
}

func TestSweeper_Disabled(t *testing.T) {
	called := false
	sw := NewSweeper(func(context.Context) (domain.SweepResult, error) {
		called = true
		return domain.SweepResult{}, nil
	}, 0, nil)
	if err := sw.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("disabled sweeper should not sweep")
	}
}
