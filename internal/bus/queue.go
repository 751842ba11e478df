package bus

import (
	"context"
	"slices"
	"sync"
)

// UpdateHandler observes session updates.
type UpdateHandler func(Update)

// UpdateBus decouples the session owner from its observers using a Go channel.
type UpdateBus struct {
	Updates chan Update

	mu          sync.RWMutex
	next        int
	subscribers map[int]UpdateHandler
}

// NewUpdateBus creates a new update bus with a buffered channel.
func NewUpdateBus() *UpdateBus {
	return &UpdateBus{
		Updates:     make(chan Update, 64),
		subscribers: make(map[int]UpdateHandler),
	}
}

// Publish queues u for dispatch. It blocks while the buffer is full and gives
// up when ctx is done.
func (b *UpdateBus) Publish(ctx context.Context, u Update) bool {
	select {
	case b.Updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// Subscribe registers handler and returns a func that removes it.
func (b *UpdateBus) Subscribe(handler UpdateHandler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subscribers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

func (b *UpdateBus) handlers() []UpdateHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]UpdateHandler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, b.subscribers[id])
	}
	return hs
}

// Dispatch reads from the update queue and hands each update to every
// subscriber in subscription order. Blocks until ctx is cancelled.
func (b *UpdateBus) Dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-b.Updates:
			for _, h := range b.handlers() {
				h(u)
			}
		}
	}
}
