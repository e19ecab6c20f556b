package service

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultSweepInterval = 15 * time.Minute

// Cleaner is the part of Manager the sweeper drives.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// Sweeper periodically removes a stored session once it is no longer live, so a device that is
// never reopened still releases its credential.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	clock    clockwork.Clock
}

// NewSweeper returns a sweeper that calls cleaner.Cleanup every interval (15m if interval <= 0).
func NewSweeper(cleaner Cleaner, interval time.Duration, clock clockwork.Clock) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{cleaner: cleaner, interval: interval, clock: clock}
}

// Run sweeps once immediately, then on every tick. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("sweeper: cleanup failed: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("sweeper: removed %d stale session(s)", n)
	}
}
