package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)

	for _, want := range []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond} {
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if b.current != want {
			t.Errorf("current = %v, want %v", b.current, want)
		}
	}
}

func TestBackoff_WaitCancelled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRetry(t *testing.T) {
	boom := errors.New("boom")

	calls := 0
	err := Retry(context.Background(), mockLogger{}, "open", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return boom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry() = %v after %d calls, want nil after 3", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), mockLogger{}, "open", 2, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Errorf("Retry() = %v after %d calls, want boom after 2", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, mockLogger{}, "open", 5, time.Hour, func() error { return boom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() with cancelled ctx = %v, want context.Canceled", err)
	}
}
