// Package worker hosts the background maintenance loops that run
// alongside the queue consumer.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/evently/booking-engine/internal/repository"
)

// ExpiredReleaser reclaims lapsed seat holds in bulk.
type ExpiredReleaser interface {
	ReleaseExpired(ctx context.Context, q repository.Querier) (int64, error)
}

// HoldSweeper periodically returns expired held seats to the available
// pool. The reads that matter already treat an expired hold as free,
// so the sweeper only keeps the stored state tidy; a missed tick never
// blocks a booking.
type HoldSweeper struct {
	runner   repository.TxRunner
	seats    ExpiredReleaser
	interval time.Duration
}

// NewHoldSweeper builds a sweeper. Intervals below one second are
// raised to the 30s default.
func NewHoldSweeper(runner repository.TxRunner, seats ExpiredReleaser, interval time.Duration) *HoldSweeper {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	return &HoldSweeper{runner: runner, seats: seats, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *HoldSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HoldSweeper) sweep(ctx context.Context) {
	var released int64
	err := s.runner.InTx(ctx, func(q repository.Querier) error {
		var err error
		released, err = s.seats.ReleaseExpired(ctx, q)
		return err
	})
	if err != nil {
		log.Printf("hold-sweeper: sweep failed: %v", err)
		return
	}
	if released > 0 {
		log.Printf("hold-sweeper: released %d expired holds", released)
	}
}
