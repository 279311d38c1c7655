package watch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"concordiacal/internal/watch"
)

func TestRunExecutesImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- watch.Run(ctx, "0 0 1 1 *", func(context.Context) error {
			calls.Add(1)
			return errors.New("job errors are logged, not fatal")
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if calls.Load() != 1 {
		t.Errorf("job calls = %d, want 1", calls.Load())
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	err := watch.Run(context.Background(), "every tuesday", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
