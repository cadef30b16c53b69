package service

import (
    "context"
    "log"
    "time"
)

// Sweeper reclaims lapsed holds on a fixed interval.  Every read and
// write path already sweeps lazily, but a periodic pass bounds staleness
// even with zero traffic.  Sweep errors are logged and retried on the
// next tick; they never propagate.
type Sweeper struct {
    engine   *ReservationEngine
    interval time.Duration
}

// NewSweeper builds a sweeper over the engine.  A non-positive interval
// falls back to one minute.
func NewSweeper(engine *ReservationEngine, interval time.Duration) *Sweeper {
    if interval <= 0 {
        interval = time.Minute
    }
    return &Sweeper{engine: engine, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            count, err := s.engine.SweepOnce(ctx)
            if err != nil {
                log.Printf("sweeper: expire pass failed: %v", err)
                continue
            }
            if count > 0 {
                log.Printf("sweeper: expired %d lapsed bookings", count)
            }
        }
    }
}
