package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joebot/meetchat/internal/bus"
	"github.com/joebot/meetchat/internal/coordinator"
)

// LeaveCommand ends a headless session.
const LeaveCommand = "/leave"

// RunHeadless joins link without a UI. Received messages and notices are
// written to out; every line read from in is sent to the meeting chat. It
// returns once the call has ended, or with the first error that makes the
// meeting unreachable. The end of in does not leave the meeting.
func RunHeadless(ctx context.Context, c Controller, link string, in io.Reader, out io.Writer) error {
	updates := make(chan bus.Update, 64)
	unsubscribe := c.Subscribe(func(u bus.Update) {
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("%s meetchat", Logo))+DimStyle.Render(" headless, type "+LeaveCommand+" to leave"))
	c.Initialize()

	var (
		joinRequested bool
		leaving       bool
		printed       int
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case u := <-updates:
			printed = printMessages(out, u.Snapshot.Messages, printed)
			if r := u.Report; r != nil {
				printReport(out, r)
				if err := fatalReport(r); err != nil {
					return err
				}
				if r.Text == coordinator.TextLeft || r.Text == coordinator.TextCallEnded {
					return nil
				}
				if leaving && errors.Is(r.Err, coordinator.ErrNoActiveCall) {
					return nil
				}
			}
			if !joinRequested && u.Snapshot.HasCallAgent {
				joinRequested = true
				c.JoinMeeting(link)
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == LeaveCommand:
				leaving = true
				c.LeaveMeeting()
			default:
				c.SendMessage(line)
			}
		}
	}
}

// fatalReport returns an error for failures that leave nothing to do.
func fatalReport(r *bus.Report) error {
	if !r.Failed() {
		return nil
	}
	switch coordinator.KindOf(r.Err) {
	case coordinator.KindCredential, coordinator.KindJoin, coordinator.KindPermissionDenied:
		return r.Err
	case coordinator.KindCapabilityInit:
		if r.Text == coordinator.TextAgentFailed {
			return r.Err
		}
	}
	return nil
}

func printReport(out io.Writer, r *bus.Report) {
	if r.Failed() {
		fmt.Fprintln(out, ErrStyle.Render("! "+r.Text)+DimStyle.Render(" ("+r.Err.Error()+")"))
		return
	}
	fmt.Fprintln(out, NoticeStyle.Render("* "+r.Text))
}

// printMessages writes messages past the already printed count and returns
// the new count. A shorter list means the session was cleared.
func printMessages(out io.Writer, msgs []bus.Message, printed int) int {
	if len(msgs) < printed {
		printed = 0
	}
	for _, m := range msgs[printed:] {
		label := PeerLabel.Render(m.SenderDisplayName)
		if m.Own {
			label = OwnLabel.Render("You")
		}
		fmt.Fprintf(out, "%s: %s\n", label, m.Content)
	}
	return len(msgs)
}
