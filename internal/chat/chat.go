// Package chat defines the messaging capability used for meeting chat and
// its gateway and Discord backends.
package chat

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind names a class of chat notifications.
type EventKind int

const (
	ChatMessageReceived EventKind = iota + 1
)

func (k EventKind) String() string {
	switch k {
	case ChatMessageReceived:
		return "chatMessageReceived"
	default:
		return "unknown"
	}
}

// MessageEvent is a chat message pushed by the backend.
type MessageEvent struct {
	ID                string
	ThreadID          string
	SenderDisplayName string
	Content           string
	CreatedOn         time.Time
}

// Handler receives events. It may be called from any goroutine.
type Handler func(MessageEvent)

// Client is a connection to a chat backend.
type Client interface {
	// StartNotifications opens the push channel for registered handlers.
	StartNotifications(ctx context.Context) error
	// Register adds h for events of kind and returns a func that removes it.
	Register(kind EventKind, h Handler) func()
	// ThreadClient opens the thread with the given meeting thread id.
	ThreadClient(ctx context.Context, threadID string) (Thread, error)
	Close() error
}

// Thread sends messages into one chat thread.
type Thread interface {
	ID() string
	Send(ctx context.Context, content, senderDisplayName string) (string, error)
}

// Options tune backend clients. Zero values pick defaults.
type Options struct {
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	APIVersion string
}

const defaultAPIVersion = "2021-09-07"

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (o Options) dialer() *websocket.Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	return websocket.DefaultDialer
}

func (o Options) apiVersion() string {
	if o.APIVersion != "" {
		return o.APIVersion
	}
	return defaultAPIVersion
}

// handlerSet holds registrations keyed by kind, called in registration order.
type handlerSet struct {
	mu       sync.Mutex
	next     int
	handlers map[EventKind]map[int]Handler
}

func (s *handlerSet) add(kind EventKind, h Handler) func() {
	s.mu.Lock()
	if s.handlers == nil {
		s.handlers = make(map[EventKind]map[int]Handler)
	}
	if s.handlers[kind] == nil {
		s.handlers[kind] = make(map[int]Handler)
	}
	id := s.next
	s.next++
	s.handlers[kind][id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers[kind], id)
			s.mu.Unlock()
		})
	}
}

func (s *handlerSet) emit(kind EventKind, ev MessageEvent) {
	s.mu.Lock()
	byID := s.handlers[kind]
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, byID[id])
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func (s *handlerSet) clear() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}
