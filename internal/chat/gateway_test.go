package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joebot/meetchat/internal/credential"
)

func testCredential(t *testing.T) (credential.Credential, string) {
	t.Helper()
	enc := base64.RawURLEncoding
	tok := enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(`{"sub":"tester"}`)) + ".sig"
	cred, err := credential.New(tok)
	if err != nil {
		t.Fatal(err)
	}
	return cred, tok
}

func TestNewGatewayClientRejectsBadEndpoints(t *testing.T) {
	cred, _ := testCredential(t)
	for _, endpoint := range []string{"", "not a url", "ftp://chat.example.com", "/relative/path", "https://"} {
		if _, err := NewGatewayClient(endpoint, cred, Options{}); err == nil {
			t.Errorf("NewGatewayClient(%q): expected error", endpoint)
		}
	}
	if _, err := NewGatewayClient("https://chat.example.com", nil, Options{}); err == nil {
		t.Error("expected error for nil credential")
	}
}

func TestGatewaySend(t *testing.T) {
	cred, tok := testCredential(t)

	var (
		mu      sync.Mutex
		gotPath string
		gotVer  string
		gotAuth string
		gotBody sendRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotVer = r.URL.Query().Get("api-version")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"msg-42"}`))
	}))
	defer srv.Close()

	c, err := NewGatewayClient(srv.URL+"/", cred, Options{APIVersion: "2024-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	th, err := c.ThreadClient(context.Background(), "19%3ameeting_ABC123%40thread.v2")
	if err != nil {
		t.Fatal(err)
	}
	if th.ID() != "19%3ameeting_ABC123%40thread.v2" {
		t.Errorf("thread id: got %q", th.ID())
	}

	id, err := th.Send(context.Background(), "hello", "Ada")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "msg-42" {
		t.Errorf("message id: got %q", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/chat/threads/19:meeting_ABC123@thread.v2/messages" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotVer != "2024-01-01" {
		t.Errorf("api-version: got %q", gotVer)
	}
	if gotAuth != "Bearer "+tok {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if gotBody.Content != "hello" || gotBody.SenderDisplayName != "Ada" || gotBody.Type != "text" {
		t.Errorf("body: %+v", gotBody)
	}
	if gotBody.ClientMessageID == "" {
		t.Error("expected a client message id")
	}
}

func TestGatewaySendError(t *testing.T) {
	cred, _ := testCredential(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "thread not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewGatewayClient(srv.URL, cred, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	th, _ := c.ThreadClient(context.Background(), "t-1")
	_, err = th.Send(context.Background(), "hi", "Ada")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestGatewaySendEmptyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"no content", http.StatusNoContent},
		{"created without body", http.StatusCreated},
		{"accepted without body", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, _ := testCredential(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, err := NewGatewayClient(srv.URL, cred, Options{})
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()

			th, _ := c.ThreadClient(context.Background(), "t-1")
			id, err := th.Send(context.Background(), "hi", "Ada")
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if id != "" {
				t.Errorf("id = %q, want empty", id)
			}
		})
	}
}

func TestGatewayThreadClientEmptyID(t *testing.T) {
	cred, _ := testCredential(t)
	c, err := NewGatewayClient("https://chat.example.com", cred, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.ThreadClient(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}

func TestGatewayNotifications(t *testing.T) {
	cred, tok := testCredential(t)
	upgrader := websocket.Upgrader{}
	connected := make(chan *websocket.Conn, 1)
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/notifications" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connected <- conn
	}))
	defer srv.Close()

	c, err := NewGatewayClient(srv.URL, cred, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	events := make(chan MessageEvent, 4)
	c.Register(ChatMessageReceived, func(ev MessageEvent) { events <- ev })

	if err := c.StartNotifications(context.Background()); err != nil {
		t.Fatalf("StartNotifications: %v", err)
	}
	var server *websocket.Conn
	select {
	case server = <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("notification stream never connected")
	}
	defer server.Close()
	if auth != "Bearer "+tok {
		t.Errorf("authorization: got %q", auth)
	}

	server.WriteMessage(websocket.TextMessage, []byte(`{"type":"typingIndicatorReceived","threadId":"t-1"}`))
	server.WriteMessage(websocket.TextMessage, []byte(`not json`))
	server.WriteJSON(map[string]any{
		"type":              "chatMessageReceived",
		"id":                "m-1",
		"threadId":          "t-1",
		"senderDisplayName": "Grace",
		"message":           "<p>hi</p>",
		"createdOn":         "2026-01-02T03:04:05Z",
	})

	select {
	case ev := <-events:
		if ev.ID != "m-1" || ev.ThreadID != "t-1" || ev.SenderDisplayName != "Grace" || ev.Content != "<p>hi</p>" {
			t.Errorf("event: %+v", ev)
		}
		if ev.CreatedOn.Year() != 2026 {
			t.Errorf("createdOn: %v", ev.CreatedOn)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGatewayStartNotificationsFailure(t *testing.T) {
	cred, _ := testCredential(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewGatewayClient(srv.URL, cred, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.StartNotifications(context.Background()); err == nil {
		t.Fatal("expected error from a server that does not upgrade")
	}
}
