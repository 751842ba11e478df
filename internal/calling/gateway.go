package calling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joebot/meetchat/internal/credential"
	"github.com/joebot/meetchat/internal/heartbeat"
)

// ErrClosed is returned for requests on a gateway session that has gone away.
var ErrClosed = errors.New("calling gateway connection closed")

// Gateway connects to a calling gateway speaking JSON-RPC 2.0 over a websocket.
type Gateway struct {
	URL       string
	KeepAlive time.Duration
	Dialer    *websocket.Dialer
}

var _ Connector = (*Gateway)(nil)

// NewGateway returns a connector for the gateway at url (ws:// or wss://).
func NewGateway(url string, keepAlive time.Duration) *Gateway {
	return &Gateway{URL: url, KeepAlive: keepAlive, Dialer: websocket.DefaultDialer}
}

// CreateAgent dials the gateway and opens a calling session for cred.
func (g *Gateway) CreateAgent(ctx context.Context, cred credential.Credential) (Agent, error) {
	if g.URL == "" {
		return nil, fmt.Errorf("calling gateway url not configured")
	}
	auth, err := credential.BearerHeader(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("calling credential: %w", err)
	}

	dialer := g.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	h := http.Header{}
	h.Set("Authorization", auth)
	conn, _, err := dialer.DialContext(ctx, g.URL, h)
	if err != nil {
		return nil, fmt.Errorf("dial calling gateway: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	hbCtx, stopBeat := context.WithCancel(context.Background())
	a := &gatewayAgent{
		conn:     conn,
		stopBeat: stopBeat,
		pending:  make(map[string]chan *rpcMessage),
		calls:    make(map[string]*gatewayCall),
		early:    make(map[string]State),
		done:     make(chan struct{}),
	}
	go a.readLoop()

	var res sessionCreateResult
	if err := a.call(ctx, methodSessionCreate, sessionCreateParams{ClientID: uuid.NewString()}, &res); err != nil {
		a.Close()
		return nil, fmt.Errorf("create calling session: %w", err)
	}
	a.sessionID = res.SessionID
	slog.Info("Calling session created", "session", a.sessionID)

	hb := heartbeat.NewService("calling", g.KeepAlive, func(ctx context.Context) error {
		return a.call(ctx, methodSessionKeepAlive, keepAliveParams{SessionID: a.sessionID}, nil)
	})
	go hb.Run(hbCtx)

	return a, nil
}

type gatewayAgent struct {
	conn      *websocket.Conn
	sessionID string
	stopBeat  context.CancelFunc

	wmu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	pending map[string]chan *rpcMessage
	calls   map[string]*gatewayCall
	early   map[string]State // states seen before the call was registered
	closed  bool
	done    chan struct{}
}

func (a *gatewayAgent) Join(ctx context.Context, loc Locator, opts JoinOptions) (Call, error) {
	var res joinResult
	err := a.call(ctx, methodCallJoin, joinParams{
		SessionID:   a.sessionID,
		Locator:     loc.Params(),
		DisplayName: opts.DisplayName,
		Muted:       opts.Muted,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("join call: %w", err)
	}
	if res.CallID == "" {
		return nil, fmt.Errorf("join call: gateway returned no call id")
	}

	c := &gatewayCall{
		id:        res.CallID,
		agent:     a,
		state:     ParseState(res.State),
		observers: make(map[int]func(State)),
	}
	a.mu.Lock()
	if st, ok := a.early[c.id]; ok {
		c.state = st
		delete(a.early, c.id)
	}
	a.calls[c.id] = c
	a.mu.Unlock()

	slog.Info("Joined call", "call", c.id, "state", c.state)
	return c, nil
}

// Close ends the gateway session. Live calls are reported Disconnected.
func (a *gatewayAgent) Close() error {
	a.wmu.Lock()
	a.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	a.wmu.Unlock()
	a.shutdown(ErrClosed)
	return a.conn.Close()
}

func (a *gatewayAgent) call(ctx context.Context, method string, params any, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan *rpcMessage, 1)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.pending[req.ID] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, req.ID)
		a.mu.Unlock()
	}()

	a.wmu.Lock()
	err = a.conn.WriteMessage(websocket.TextMessage, data)
	a.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}
	if method != methodSessionKeepAlive {
		slog.Debug("Gateway request", "method", method, "id", req.ID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("parse %s result: %w", method, err)
			}
		}
		return nil
	}
}

func (a *gatewayAgent) readLoop() {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			a.shutdown(err)
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid JSON from calling gateway", "err", err)
			continue
		}

		if msg.isNotification() {
			a.handleNotification(&msg)
			continue
		}

		a.mu.Lock()
		ch, ok := a.pending[msg.ID]
		a.mu.Unlock()
		if !ok {
			slog.Debug("Gateway response without pending request", "id", msg.ID)
			continue
		}
		select {
		case ch <- &msg:
		default:
			slog.Debug("Duplicate gateway response dropped", "id", msg.ID)
		}
	}
}

func (a *gatewayAgent) handleNotification(msg *rpcMessage) {
	switch msg.Method {
	case notifyCallStateChanged:
		var p stateChangedParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			slog.Warn("Invalid call.stateChanged params", "err", err)
			return
		}
		st := ParseState(p.State)

		a.mu.Lock()
		c, ok := a.calls[p.CallID]
		if !ok {
			a.early[p.CallID] = st
		}
		if ok && st == StateDisconnected {
			delete(a.calls, p.CallID)
		}
		a.mu.Unlock()

		if ok {
			c.setState(st)
		}
	default:
		slog.Debug("Unhandled gateway notification", "method", msg.Method)
	}
}

func (a *gatewayAgent) shutdown(cause error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.done)
	calls := make([]*gatewayCall, 0, len(a.calls))
	for _, c := range a.calls {
		calls = append(calls, c)
	}
	a.calls = make(map[string]*gatewayCall)
	a.mu.Unlock()

	a.stopBeat()
	if !errors.Is(cause, ErrClosed) {
		slog.Warn("Calling gateway connection lost", "err", cause)
	}
	for _, c := range calls {
		c.setState(StateDisconnected)
	}
}

type gatewayCall struct {
	id    string
	agent *gatewayAgent

	mu        sync.Mutex
	state     State
	nextObs   int
	observers map[int]func(State)
}

func (c *gatewayCall) ID() string { return c.id }

func (c *gatewayCall) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *gatewayCall) HangUp(ctx context.Context, opts HangUpOptions) error {
	err := c.agent.call(ctx, methodCallHangUp, hangUpParams{CallID: c.id, ForEveryone: opts.ForEveryone}, nil)
	if err != nil {
		return fmt.Errorf("hang up call %s: %w", c.id, err)
	}
	return nil
}

func (c *gatewayCall) OnStateChanged(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// setState records st and notifies observers in registration order.
func (c *gatewayCall) setState(st State) {
	c.mu.Lock()
	if c.state == st {
		c.mu.Unlock()
		return
	}
	c.state = st
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	fns := make([]func(State), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
