package services

import (
	"context"
	"time"

	"billpay/web/logger"
)

// Sweeper evicts idle browser sessions.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// StartScheduler runs the periodic session sweep until ctx is cancelled.
// The returned channel is closed once the loop has stopped.
func StartScheduler(ctx context.Context, sweeper Sweeper, interval, idle time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		logger.Log.Warn().Msg("session sweeper disabled")
		close(done)
		return done
	}
	logger.Log.Info().Dur("interval", interval).Dur("idle", idle).Msg("starting session sweeper")

	go func() {
		defer close(done)
		runSweeper(ctx, sweeper, interval, idle)
	}()
	return done
}

func runSweeper(ctx context.Context, sweeper Sweeper, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			if n := sweeper.Sweep(ctx, idle); n > 0 {
				logger.Log.Debug().Int("evicted", n).Msg("idle browser sessions evicted")
			}
		}
	}
}
