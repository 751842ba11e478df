package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joebot/meetchat/internal/bus"
	"github.com/joebot/meetchat/internal/coordinator"
)

// fakeController answers actions with the updates a coordinator would publish.
type fakeController struct {
	mu       sync.Mutex
	handlers []bus.UpdateHandler
	initErr  error
	joined   chan struct{}
	joins    []string
	sends    []string
	snap     bus.Snapshot
}

func (f *fakeController) Subscribe(fn bus.UpdateHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fn)
	return func() {}
}

func (f *fakeController) emit(u bus.Update) {
	f.mu.Lock()
	hs := append([]bus.UpdateHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		h(u)
	}
}

func (f *fakeController) Initialize() {
	if f.initErr != nil {
		f.emit(bus.Update{Report: &bus.Report{Text: coordinator.TextCredentialFailed, Err: f.initErr}})
		return
	}
	f.snap.HasCallAgent = true
	f.emit(bus.Update{Snapshot: f.snap, Report: &bus.Report{Text: coordinator.TextAgentCreated}})
}

func (f *fakeController) JoinMeeting(link string) {
	f.mu.Lock()
	f.joins = append(f.joins, link)
	f.mu.Unlock()
	if f.joined != nil {
		close(f.joined)
	}
	f.snap.CallID = "call-1"
	f.snap.HasThread = true
	f.snap.Messages = []bus.Message{{ID: "1", SenderDisplayName: "Ada", Content: "welcome"}}
	f.emit(bus.Update{Snapshot: f.snap, Report: &bus.Report{Text: coordinator.TextJoined}})
}

func (f *fakeController) SendMessage(text string) {
	f.mu.Lock()
	f.sends = append(f.sends, text)
	f.mu.Unlock()
}

func (f *fakeController) LeaveMeeting() {
	f.snap = bus.Snapshot{HasCallAgent: true}
	f.emit(bus.Update{Snapshot: f.snap, Report: &bus.Report{Text: coordinator.TextLeft}})
}

func runHeadless(t *testing.T, c Controller, in io.Reader) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := RunHeadless(ctx, c, "https://teams.example/l/meetup-join/19%3ameeting_x%40thread.v2/0", in, &out)
	if ctx.Err() != nil {
		t.Fatal("headless session did not finish")
	}
	return out.String(), err
}

func TestRunHeadlessJoinSendLeave(t *testing.T) {
	c := &fakeController{joined: make(chan struct{})}
	pr, pw := io.Pipe()
	go func() {
		<-c.joined
		io.WriteString(pw, "hello there\n\n/leave\n")
	}()
	defer pw.Close()

	out, err := runHeadless(t, c, pr)
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.joins) != 1 {
		t.Fatalf("joins = %v", c.joins)
	}
	if len(c.sends) != 1 || c.sends[0] != "hello there" {
		t.Fatalf("sends = %v", c.sends)
	}
	for _, want := range []string{coordinator.TextJoined, "welcome", coordinator.TextLeft} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunHeadlessFatalReport(t *testing.T) {
	c := &fakeController{initErr: &coordinator.Error{Kind: coordinator.KindCredential, Err: errors.New("token expired")}}
	_, err := runHeadless(t, c, strings.NewReader(""))
	if !errors.Is(err, coordinator.ErrCredential) {
		t.Fatalf("err = %v, want credential error", err)
	}
}

func TestFatalReport(t *testing.T) {
	tests := []struct {
		name  string
		r     bus.Report
		fatal bool
	}{
		{"success", bus.Report{Text: coordinator.TextJoined}, false},
		{"join", bus.Report{Text: coordinator.TextJoinFailed, Err: &coordinator.Error{Kind: coordinator.KindJoin, Err: errors.New("x")}}, true},
		{"permission", bus.Report{Text: coordinator.TextPermissionDenied, Err: &coordinator.Error{Kind: coordinator.KindPermissionDenied, Err: errors.New("x")}}, true},
		{"agent", bus.Report{Text: coordinator.TextAgentFailed, Err: &coordinator.Error{Kind: coordinator.KindCapabilityInit, Err: errors.New("x")}}, true},
		{"notifications", bus.Report{Text: coordinator.TextNotificationsFail, Err: &coordinator.Error{Kind: coordinator.KindCapabilityInit, Err: errors.New("x")}}, false},
		{"send", bus.Report{Text: coordinator.TextSendFailed, Err: &coordinator.Error{Kind: coordinator.KindSend, Err: errors.New("x")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fatalReport(&tt.r) != nil; got != tt.fatal {
				t.Errorf("fatal = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestPrintMessages(t *testing.T) {
	var out bytes.Buffer
	msgs := []bus.Message{
		{ID: "1", SenderDisplayName: "Ada", Content: "first"},
		{ID: "2", SenderDisplayName: "Me", Content: "second", Own: true},
	}

	n := printMessages(&out, msgs[:1], 0)
	n = printMessages(&out, msgs, n)
	if n != 2 {
		t.Fatalf("printed = %d", n)
	}
	if got := strings.Count(out.String(), "first"); got != 1 {
		t.Fatalf("first printed %d times:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "You") || !strings.Contains(out.String(), "second") {
		t.Fatalf("own message not printed:\n%s", out.String())
	}

	out.Reset()
	if n = printMessages(&out, nil, n); n != 0 || out.Len() != 0 {
		t.Fatalf("cleared list printed %q, n=%d", out.String(), n)
	}
}
