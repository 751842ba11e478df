// Package permission asks the user for microphone access before a call.
package permission

import (
	"context"
	"log/slog"
	"sync"
)

// Requester asks for permission to record audio. It blocks until the user
// answers or ctx is done; a cancelled request counts as denied.
type Requester interface {
	RequestRecordPermission(ctx context.Context) bool
}

// Static answers every request the same way. Used in headless mode.
type Static bool

func (s Static) RequestRecordPermission(ctx context.Context) bool {
	return bool(s) && ctx.Err() == nil
}

// AskFunc puts the question to the user and returns the answer.
type AskFunc func(ctx context.Context) (bool, error)

// Prompt asks through Ask. A grant is remembered for the rest of the run;
// a denial is not, so the next join asks again.
type Prompt struct {
	Ask AskFunc

	mu      sync.Mutex
	granted bool
}

// NewPrompt returns a Prompt asking through ask.
func NewPrompt(ask AskFunc) *Prompt {
	return &Prompt{Ask: ask}
}

// SetAsk replaces the ask function, e.g. once a UI exists to answer it.
func (p *Prompt) SetAsk(ask AskFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Ask = ask
}

func (p *Prompt) RequestRecordPermission(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted {
		return true
	}
	if p.Ask == nil {
		return false
	}
	ok, err := p.Ask(ctx)
	if err != nil {
		slog.Warn("Microphone permission prompt failed", "err", err)
		return false
	}
	p.granted = ok
	return ok
}
