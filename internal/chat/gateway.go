package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joebot/meetchat/internal/credential"
)

// GatewayClient talks to a chat gateway: REST for sending, a websocket for
// push notifications.
type GatewayClient struct {
	base       string
	cred       credential.Credential
	http       *http.Client
	dialer     *websocket.Dialer
	apiVersion string
	retryDelay time.Duration

	handlers handlerSet

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	done    chan struct{}
}

var _ Client = (*GatewayClient)(nil)

// NewGatewayClient returns a client for the gateway at endpoint, which must
// be an absolute http or https URL.
func NewGatewayClient(endpoint string, cred credential.Credential, opts Options) (*GatewayClient, error) {
	if cred == nil {
		return nil, errors.New("chat credential is nil")
	}
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("chat endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("chat endpoint %q: must be an absolute http(s) URL", endpoint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &GatewayClient{
		base:       strings.TrimRight(u.String(), "/"),
		cred:       cred,
		http:       opts.httpClient(),
		dialer:     opts.dialer(),
		apiVersion: opts.apiVersion(),
		retryDelay: 5 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

func (c *GatewayClient) Register(kind EventKind, h Handler) func() {
	return c.handlers.add(kind, h)
}

// StartNotifications dials the notification stream. The first dial is
// synchronous so failures reach the caller; later drops are redialed in the
// background until Close.
func (c *GatewayClient) StartNotifications(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("start chat notifications: %w", err)
	}

	c.mu.Lock()
	if c.started || c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		return nil
	}
	c.started = true
	c.conn = conn
	c.mu.Unlock()

	go c.notificationLoop(conn)
	return nil
}

func (c *GatewayClient) notificationsURL() string {
	u := c.base + "/chat/notifications"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

func (c *GatewayClient) dial(ctx context.Context) (*websocket.Conn, error) {
	auth, err := credential.BearerHeader(ctx, c.cred)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", auth)
	conn, _, err := c.dialer.DialContext(ctx, c.notificationsURL(), h)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

func (c *GatewayClient) notificationLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		err := c.readNotifications(conn)
		conn.Close()
		if c.ctx.Err() != nil {
			return
		}
		slog.Warn("Chat notifications disconnected, reconnecting", "err", err, "in", c.retryDelay)

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			conn, err = c.dial(c.ctx)
			if err == nil {
				break
			}
			slog.Warn("Chat notifications dial failed", "err", err)
		}

		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()
		slog.Info("Chat notifications reconnected")
	}
}

type notification struct {
	Type              string    `json:"type"`
	ID                string    `json:"id"`
	ThreadID          string    `json:"threadId"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Message           string    `json:"message"`
	CreatedOn         time.Time `json:"createdOn"`
}

func (c *GatewayClient) readNotifications(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var n notification
		if err := json.Unmarshal(data, &n); err != nil {
			slog.Warn("Invalid chat notification", "err", err)
			continue
		}
		if n.Type != ChatMessageReceived.String() {
			slog.Debug("Ignoring chat notification", "type", n.Type)
			continue
		}
		c.handlers.emit(ChatMessageReceived, MessageEvent{
			ID:                n.ID,
			ThreadID:          n.ThreadID,
			SenderDisplayName: n.SenderDisplayName,
			Content:           n.Message,
			CreatedOn:         n.CreatedOn,
		})
	}
}

// ThreadClient returns a sender for threadID. No request is made.
func (c *GatewayClient) ThreadClient(ctx context.Context, threadID string) (Thread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, errors.New("chat thread id is empty")
	}
	decoded, err := url.PathUnescape(threadID)
	if err != nil {
		decoded = threadID
	}
	return &gatewayThread{client: c, id: threadID, wireID: decoded}, nil
}

// Close stops notifications and drops registered handlers.
func (c *GatewayClient) Close() error {
	c.cancel()
	c.mu.Lock()
	conn, started := c.conn, c.started
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if started {
		<-c.done
	}
	c.handlers.clear()
	return nil
}

func (c *GatewayClient) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return err
	}
	auth, err := credential.BearerHeader(ctx, c.cred)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chat post %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type gatewayThread struct {
	client *GatewayClient
	id     string
	wireID string
}

func (t *gatewayThread) ID() string { return t.id }

type sendRequest struct {
	Content           string `json:"content"`
	SenderDisplayName string `json:"senderDisplayName"`
	Type              string `json:"type"`
	ClientMessageID   string `json:"clientMessageId"`
}

func (t *gatewayThread) Send(ctx context.Context, content, senderDisplayName string) (string, error) {
	path := "/chat/threads/" + url.PathEscape(t.wireID) + "/messages?api-version=" + url.QueryEscape(t.client.apiVersion)
	var out struct {
		ID string `json:"id"`
	}
	err := t.client.post(ctx, path, sendRequest{
		Content:           content,
		SenderDisplayName: senderDisplayName,
		Type:              "text",
		ClientMessageID:   uuid.NewString(),
	}, &out)
	if err != nil {
		return "", fmt.Errorf("send chat message: %w", err)
	}
	return out.ID, nil
}
