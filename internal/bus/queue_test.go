package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joebot/meetchat/internal/calling"
)

func TestDispatchOrderAndUnsubscribe(t *testing.T) {
	b := NewUpdateBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Dispatch(ctx)

	got := make(chan string, 8)
	removeFirst := b.Subscribe(func(u Update) { got <- "first:" + u.Snapshot.Status })
	b.Subscribe(func(u Update) { got <- "second:" + u.Snapshot.Status })

	b.Publish(ctx, Update{Snapshot: Snapshot{Status: "a"}})
	expect(t, got, "first:a")
	expect(t, got, "second:a")

	removeFirst()
	removeFirst()
	b.Publish(ctx, Update{Snapshot: Snapshot{Status: "b"}})
	expect(t, got, "second:b")

	select {
	case s := <-got:
		t.Fatalf("unexpected delivery %q", s)
	case <-time.After(20 * time.Millisecond):
	}
}

func expect(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case s := <-ch:
		if s != want {
			t.Fatalf("got %q, want %q", s, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestPublishGivesUpOnCancel(t *testing.T) {
	b := &UpdateBus{Updates: make(chan Update), subscribers: map[int]UpdateHandler{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if b.Publish(ctx, Update{}) {
		t.Fatal("publish on a full bus with a cancelled context should fail")
	}
}

func TestSnapshotActions(t *testing.T) {
	tests := []struct {
		name                    string
		s                       Snapshot
		canJoin, canLeave, send bool
	}{
		{"uninitialized", Snapshot{}, false, false, false},
		{"ready", Snapshot{HasCallAgent: true}, true, false, false},
		{"joining", Snapshot{HasCallAgent: true, Joining: true}, false, false, false},
		{"in call", Snapshot{HasCallAgent: true, CallID: "c", CallState: calling.StateConnected}, false, true, false},
		{"in call with chat", Snapshot{HasCallAgent: true, CallID: "c", HasThread: true}, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.CanJoin(); got != tt.canJoin {
				t.Errorf("CanJoin = %v", got)
			}
			if got := tt.s.CanLeave(); got != tt.canLeave {
				t.Errorf("CanLeave = %v", got)
			}
			if got := tt.s.CanSend(); got != tt.send {
				t.Errorf("CanSend = %v", got)
			}
		})
	}
}

func TestReportFailed(t *testing.T) {
	var nilReport *Report
	if nilReport.Failed() {
		t.Error("nil report failed")
	}
	if (&Report{Text: "ok"}).Failed() {
		t.Error("success report failed")
	}
	if !(&Report{Text: "bad", Err: errors.New("x")}).Failed() {
		t.Error("error report not failed")
	}
}
