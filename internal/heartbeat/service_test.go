package heartbeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestServiceBeatsUntilCancelled(t *testing.T) {
	var beats atomic.Int32
	svc := NewService("test", 5*time.Millisecond, func(ctx context.Context) error {
		if beats.Add(1)%2 == 0 {
			return errors.New("flaky")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for beats.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d beats", beats.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaultInterval(t *testing.T) {
	if got := NewService("x", 0, nil).Interval(); got != DefaultInterval {
		t.Errorf("got %v, want %v", got, DefaultInterval)
	}
}
