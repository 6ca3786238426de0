package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper drops expired in-process state.
type Sweeper interface {
	Sweep(now time.Time) int
}

// StartSweepJob periodically sweeps the in-process rate limiter and
// idempotency stores. Redis-backed deployments pass no sweepers and the job
// does not start.
func StartSweepJob(ctx context.Context, interval time.Duration, log logrus.FieldLogger, sweepers ...Sweeper) {
	if len(sweepers) == 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := SweepOnce(now, sweepers...); removed > 0 {
					log.WithField("removed", removed).Debug("sweep job dropped expired entries")
				}
			}
		}
	}()
}

func SweepOnce(now time.Time, sweepers ...Sweeper) int {
	removed := 0
	for _, s := range sweepers {
		removed += s.Sweep(now)
	}
	return removed
}
