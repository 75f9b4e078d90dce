package lock

import (
	"context"
	log "log/slog"
	"sync"
	"time"
)

// Sweeper periodically removes expired lock rows.
type Sweeper struct {
	m        *Manager
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSweeper returns a sweeper running every interval once started.
func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{m: m, interval: interval}
}

// Start launches the sweep goroutine. It stops when ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce runs a single sweep; failures are logged.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.m.SweepExpired(ctx, nil)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("lock sweep failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		log.Info("expired locks swept", "count", n)
	}
	return n
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
