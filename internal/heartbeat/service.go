package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the default keep-alive interval.
const DefaultInterval = 30 * time.Second

// OnBeat is the callback invoked on each tick.
type OnBeat func(ctx context.Context) error

// Service periodically pings a remote session so it is not reaped while idle.
type Service struct {
	name     string
	interval time.Duration
	onBeat   OnBeat
}

// NewService creates a new keep-alive service.
func NewService(name string, interval time.Duration, cb OnBeat) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		name:     name,
		interval: interval,
		onBeat:   cb,
	}
}

// Interval returns the tick interval.
func (s *Service) Interval() time.Duration {
	return s.interval
}

// Run starts the keep-alive loop. It blocks until ctx is cancelled.
// A failed beat is logged and the loop keeps going; the owner decides when
// the remote end is gone.
func (s *Service) Run(ctx context.Context) {
	slog.Debug("Keep-alive started", "name", s.name, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Keep-alive stopped", "name", s.name)
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if s.onBeat == nil {
		return
	}
	if err := s.onBeat(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("Keep-alive failed", "name", s.name, "err", err)
	}
}
