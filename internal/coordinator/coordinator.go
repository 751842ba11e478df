// Package coordinator owns the meeting session: it joins and leaves calls,
// opens the meeting chat thread, and turns provider events into updates.
//
// All session state lives on the goroutine running Run. Public methods and
// provider callbacks only enqueue work for it and never block on the network.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/joebot/meetchat/internal/bus"
	"github.com/joebot/meetchat/internal/calling"
	"github.com/joebot/meetchat/internal/chat"
	"github.com/joebot/meetchat/internal/credential"
	"github.com/joebot/meetchat/internal/meeting"
	"github.com/joebot/meetchat/internal/permission"
)

// Report texts.
const (
	TextCredentialFailed  = "Failed to create user credential"
	TextAgentCreated      = "Call agent successfully created."
	TextAgentFailed       = "Failed to create call agent"
	TextChatCreated       = "ChatClient successfully created"
	TextChatFailed        = "Failed to create ChatClient"
	TextNotificationsFail = "Failed to enable chat notifications"
	TextPermissionDenied  = "Microphone permission denied"
	TextJoinInProgress    = "Already joining or in a meeting"
	TextJoined            = "Teams meeting joined successfully"
	TextJoinFailed        = "Failed to join Teams meeting"
	TextChatJoined        = "Joined meeting chat successfully"
	TextChatJoinFailed    = "Failed to join meeting chat"
	TextLeft              = "Leaving Teams meeting was successful"
	TextLeaveFailed       = "Leaving Teams meeting failed"
	TextNoActiveCall      = "No active call to hang up"
	TextSendFailed        = "Failed to send chat message"
	TextCallEnded         = "Call ended"
	TextCallConnected     = "Call connected"

	UnknownSender = "Unknown User"
)

// ChatFactory builds a chat client for a credential.
type ChatFactory func(cred credential.Credential) (chat.Client, error)

// Archiver stores a meeting's chat when the user leaves.
type Archiver interface {
	Save(threadID string, msgs []bus.Message) error
}

// Config wires the coordinator to its capabilities.
type Config struct {
	DisplayName string
	// Token is the user access token for calling, and for chat unless
	// ChatToken is set.
	Token     string
	ChatToken string

	Calling    calling.Connector
	NewChat    ChatFactory
	Permission permission.Requester
	Archive    Archiver
	Bus        *bus.UpdateBus

	StartMuted bool
	// Dedupe drops received messages whose id was already seen in the
	// current meeting.
	Dedupe bool
}

type session struct {
	agent      calling.Agent
	chat       chat.Client
	unregister func()

	joining bool
	call    calling.Call
	unwatch func()
	state   calling.State
	thread  chat.Thread

	status   string
	notice   string
	messages []bus.Message
	seen     map[string]bool
}

// Coordinator is the session owner.
type Coordinator struct {
	cfg Config
	bus *bus.UpdateBus

	qmu     sync.Mutex
	queue   []func(context.Context)
	stopped bool
	wake    chan struct{}

	s session
}

// New returns a coordinator; nothing happens until Run and Initialize.
// A nil Permission denies microphone access.
func New(cfg Config) *Coordinator {
	if cfg.Bus == nil {
		cfg.Bus = bus.NewUpdateBus()
	}
	if cfg.Permission == nil {
		cfg.Permission = permission.Static(false)
	}
	if strings.TrimSpace(cfg.DisplayName) == "" {
		cfg.DisplayName = UnknownSender
	}
	return &Coordinator{
		cfg:  cfg,
		bus:  cfg.Bus,
		wake: make(chan struct{}, 1),
		s:    session{seen: make(map[string]bool)},
	}
}

// Run processes queued work until ctx is cancelled, then releases every
// capability handle. Updates are dispatched to subscribers while it runs.
func (c *Coordinator) Run(ctx context.Context) error {
	go c.bus.Dispatch(ctx)
	c.publish(ctx, nil, false)

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return nil
		case <-c.wake:
			for {
				op, ok := c.next()
				if !ok {
					break
				}
				op(ctx)
				if ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (c *Coordinator) next() (func(context.Context), bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	op := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return op, true
}

// post enqueues op for the owner goroutine. It never blocks and reports
// false once the coordinator has shut down.
func (c *Coordinator) post(op func(context.Context)) bool {
	c.qmu.Lock()
	if c.stopped {
		c.qmu.Unlock()
		return false
	}
	c.queue = append(c.queue, op)
	c.qmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Coordinator) teardown() {
	c.qmu.Lock()
	c.stopped = true
	c.queue = nil
	c.qmu.Unlock()

	s := &c.s
	if s.unwatch != nil {
		s.unwatch()
	}
	if s.unregister != nil {
		s.unregister()
	}
	if s.chat != nil {
		if err := s.chat.Close(); err != nil {
			slog.Warn("Closing chat client failed", "err", err)
		}
	}
	if s.agent != nil {
		if err := s.agent.Close(); err != nil {
			slog.Warn("Closing call agent failed", "err", err)
		}
	}
	slog.Debug("Session coordinator stopped")
}

// Subscribe registers fn for every update and returns a func removing it.
func (c *Coordinator) Subscribe(fn bus.UpdateHandler) func() {
	return c.bus.Subscribe(fn)
}

// Snapshot returns the current session state as seen by the owner goroutine.
func (c *Coordinator) Snapshot(ctx context.Context) (bus.Snapshot, error) {
	ch := make(chan bus.Snapshot, 1)
	if !c.post(func(context.Context) { ch <- c.snapshot() }) {
		return bus.Snapshot{}, context.Canceled
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return bus.Snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) snapshot() bus.Snapshot {
	s := &c.s
	snap := bus.Snapshot{
		DisplayName:   c.cfg.DisplayName,
		Status:        s.status,
		Notice:        s.notice,
		HasCallAgent:  s.agent != nil,
		HasChatClient: s.chat != nil,
		Joining:       s.joining,
		CallState:     s.state,
		HasThread:     s.thread != nil,
		Messages:      append([]bus.Message(nil), s.messages...),
	}
	if s.call != nil {
		snap.CallID = s.call.ID()
	}
	if s.thread != nil {
		snap.ThreadID = s.thread.ID()
	}
	return snap
}

func (c *Coordinator) publish(ctx context.Context, r *bus.Report, draftCleared bool) {
	c.bus.Publish(ctx, bus.Update{Snapshot: c.snapshot(), Report: r, DraftCleared: draftCleared})
}

// report records text as the latest notice and publishes it once. A non-nil
// err is wrapped with kind.
func (c *Coordinator) report(ctx context.Context, kind ErrorKind, text string, err error) {
	r := &bus.Report{Text: text}
	if err != nil {
		r.Err = &Error{Kind: kind, Err: err}
		slog.Warn(text, "kind", kind, "err", err)
	} else {
		slog.Info(text)
	}
	c.s.notice = text
	c.publish(ctx, r, false)
}

// Initialize creates the call agent and the chat client in the background.
func (c *Coordinator) Initialize() {
	c.post(c.initialize)
}

func (c *Coordinator) initialize(ctx context.Context) {
	if c.s.agent != nil && c.s.chat != nil {
		return
	}
	cred, err := credential.New(c.cfg.Token)
	if err != nil {
		c.report(ctx, KindCredential, TextCredentialFailed, err)
		return
	}

	if c.s.agent == nil {
		c.startAgent(ctx, cred)
	}
	if c.s.chat == nil {
		chatCred := credential.Credential(cred)
		if c.cfg.ChatToken != "" && c.cfg.ChatToken != c.cfg.Token {
			cc, err := credential.New(c.cfg.ChatToken)
			if err != nil {
				c.report(ctx, KindCredential, TextCredentialFailed, err)
				return
			}
			chatCred = cc
		}
		c.startChat(ctx, chatCred)
	}
}

func (c *Coordinator) startAgent(ctx context.Context, cred credential.Credential) {
	connector := c.cfg.Calling
	if connector == nil {
		c.report(ctx, KindCapabilityInit, TextAgentFailed, errNoCallAgent)
		return
	}
	go func() {
		agent, err := connector.CreateAgent(ctx, cred)
		posted := c.post(func(ctx context.Context) {
			if err != nil {
				c.report(ctx, KindCapabilityInit, TextAgentFailed, err)
				return
			}
			if c.s.agent != nil {
				agent.Close()
				return
			}
			c.s.agent = agent
			c.report(ctx, 0, TextAgentCreated, nil)
		})
		if !posted && agent != nil {
			agent.Close()
		}
	}()
}

func (c *Coordinator) startChat(ctx context.Context, cred credential.Credential) {
	if c.cfg.NewChat == nil {
		c.report(ctx, KindCapabilityInit, TextChatFailed, errNoChat)
		return
	}
	client, err := c.cfg.NewChat(cred)
	if err != nil {
		c.report(ctx, KindCapabilityInit, TextChatFailed, err)
		return
	}
	c.s.chat = client
	c.s.unregister = client.Register(chat.ChatMessageReceived, func(ev chat.MessageEvent) {
		c.post(func(ctx context.Context) { c.onMessageReceived(ctx, ev) })
	})
	c.report(ctx, 0, TextChatCreated, nil)

	go func() {
		err := client.StartNotifications(ctx)
		if err == nil {
			slog.Info("Realtime chat notifications started")
			return
		}
		c.post(func(ctx context.Context) {
			c.report(ctx, KindCapabilityInit, TextNotificationsFail, err)
		})
	}()
}

// JoinMeeting asks for microphone permission and joins the meeting at link.
func (c *Coordinator) JoinMeeting(link string) {
	c.post(func(ctx context.Context) { c.joinMeeting(ctx, link) })
}

func (c *Coordinator) joinMeeting(ctx context.Context, link string) {
	s := &c.s
	if s.agent == nil {
		c.report(ctx, KindCapabilityInit, TextJoinFailed, errNoCallAgent)
		return
	}
	if s.joining || s.call != nil {
		c.report(ctx, KindJoinInProgress, TextJoinInProgress, errBusy)
		return
	}
	s.joining = true
	c.publish(ctx, nil, false)

	agent := s.agent
	opts := calling.JoinOptions{DisplayName: c.cfg.DisplayName, Muted: c.cfg.StartMuted}
	perm := c.cfg.Permission
	go func() {
		if !perm.RequestRecordPermission(ctx) {
			c.post(func(ctx context.Context) {
				c.s.joining = false
				c.report(ctx, KindPermissionDenied, TextPermissionDenied, errNoPermission)
			})
			return
		}
		call, err := agent.Join(ctx, calling.MeetingLinkLocator{Link: link}, opts)
		posted := c.post(func(ctx context.Context) { c.joinCompleted(ctx, link, call, err) })
		if !posted && call != nil {
			call.HangUp(context.Background(), calling.HangUpOptions{})
		}
	}()
}

func (c *Coordinator) joinCompleted(ctx context.Context, link string, call calling.Call, err error) {
	s := &c.s
	s.joining = false
	if err != nil {
		c.report(ctx, KindJoin, TextJoinFailed, err)
		return
	}

	// Chat left over from a call that ended remotely belongs to that meeting.
	c.archive()
	c.resetChat()

	s.call = call
	s.unwatch = call.OnStateChanged(func(st calling.State) {
		c.post(func(ctx context.Context) { c.onCallStateChanged(ctx, call, st) })
	})
	s.state = call.State()
	s.status = s.state.String()
	c.report(ctx, 0, TextJoined, nil)
	if s.state == calling.StateDisconnected {
		c.onCallStateChanged(ctx, call, s.state)
		return
	}

	threadID, ok := meeting.ExtractThreadID(link)
	if !ok {
		c.report(ctx, KindThreadResolution, TextChatJoinFailed, errNoThreadID)
		return
	}
	client := s.chat
	if client == nil {
		c.report(ctx, KindThreadResolution, TextChatJoinFailed, errNoChat)
		return
	}
	go func() {
		th, err := client.ThreadClient(ctx, threadID)
		c.post(func(ctx context.Context) { c.threadOpened(ctx, call, th, err) })
	}()
}

func (c *Coordinator) threadOpened(ctx context.Context, call calling.Call, th chat.Thread, err error) {
	if c.s.call != call {
		slog.Debug("Dropping chat thread for a call that is gone")
		return
	}
	if err != nil {
		c.report(ctx, KindThreadResolution, TextChatJoinFailed, err)
		return
	}
	c.s.thread = th
	c.report(ctx, 0, TextChatJoined, nil)
}

// LeaveMeeting hangs up the current call.
func (c *Coordinator) LeaveMeeting() {
	c.post(c.leaveMeeting)
}

func (c *Coordinator) leaveMeeting(ctx context.Context) {
	call := c.s.call
	if call == nil {
		c.report(ctx, KindNoActiveCall, TextNoActiveCall, errNoCall)
		return
	}
	go func() {
		err := call.HangUp(ctx, calling.HangUpOptions{})
		c.post(func(ctx context.Context) { c.leaveCompleted(ctx, call, err) })
	}()
}

func (c *Coordinator) leaveCompleted(ctx context.Context, call calling.Call, err error) {
	s := &c.s
	if s.call != nil && s.call != call {
		slog.Debug("Dropping hang-up result for a call that is gone", "call", call.ID())
		return
	}
	if err != nil {
		c.report(ctx, KindHangUp, TextLeaveFailed, err)
		return
	}
	c.archive()
	if s.call == call {
		c.dropCall()
	}
	c.resetChat()
	c.report(ctx, 0, TextLeft, nil)
}

// resetChat forgets the meeting thread and its messages.
func (c *Coordinator) resetChat() {
	c.s.thread = nil
	c.s.messages = nil
	c.s.seen = make(map[string]bool)
}

func (c *Coordinator) archive() {
	s := &c.s
	if c.cfg.Archive == nil || s.thread == nil || len(s.messages) == 0 {
		return
	}
	if err := c.cfg.Archive.Save(s.thread.ID(), s.messages); err != nil {
		slog.Warn("Archiving meeting chat failed", "thread", s.thread.ID(), "err", err)
		return
	}
	slog.Info("Meeting chat archived", "thread", s.thread.ID(), "messages", len(s.messages))
}

func (c *Coordinator) dropCall() {
	if c.s.unwatch != nil {
		c.s.unwatch()
		c.s.unwatch = nil
	}
	c.s.call = nil
}

// SendMessage sends text to the meeting chat. Without a chat thread it does
// nothing. The draft is cleared whatever the outcome.
func (c *Coordinator) SendMessage(text string) {
	c.post(func(ctx context.Context) { c.sendMessage(ctx, text) })
}

func (c *Coordinator) sendMessage(ctx context.Context, text string) {
	th := c.s.thread
	if th == nil {
		slog.Debug("Send ignored without a chat thread")
		return
	}
	if strings.TrimSpace(text) == "" {
		c.publish(ctx, nil, true)
		return
	}
	name := c.cfg.DisplayName
	go func() {
		id, err := th.Send(ctx, text, name)
		if err != nil {
			c.post(func(ctx context.Context) { c.report(ctx, KindSend, TextSendFailed, err) })
			return
		}
		slog.Debug("Chat message sent", "id", id)
	}()
	c.publish(ctx, nil, true)
}

func (c *Coordinator) onMessageReceived(ctx context.Context, ev chat.MessageEvent) {
	s := &c.s
	if c.cfg.Dedupe && ev.ID != "" {
		if s.seen[ev.ID] {
			slog.Debug("Duplicate chat message dropped", "id", ev.ID)
			return
		}
		s.seen[ev.ID] = true
	}
	sender := strings.TrimSpace(ev.SenderDisplayName)
	if sender == "" {
		sender = UnknownSender
	}
	s.messages = append(s.messages, bus.Message{
		ID:                ev.ID,
		Content:           meeting.Sanitize(ev.Content),
		SenderDisplayName: sender,
		CreatedOn:         ev.CreatedOn,
		Own:               sender == c.cfg.DisplayName,
	})
	c.publish(ctx, nil, false)
}

func (c *Coordinator) onCallStateChanged(ctx context.Context, call calling.Call, st calling.State) {
	s := &c.s
	if s.call != call {
		return
	}
	s.state = st
	s.status = st.String()
	switch st {
	case calling.StateDisconnected:
		c.archive()
		c.dropCall()
		c.report(ctx, 0, TextCallEnded, nil)
	case calling.StateConnected:
		c.report(ctx, 0, TextCallConnected, nil)
	default:
		c.publish(ctx, nil, false)
	}
}
