package worker

// alert_sweep.go
// Background goroutine that periodically removes unacknowledged low-stock
// alerts whose product stock recovered outside of sales (restocks, manual
// corrections).

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// AlertSweeper deletes alerts that no longer describe a low-stock product.
type AlertSweeper interface {
	SweepRecovered(ctx context.Context) (int64, error)
}

// StartAlertSweep launches the sweep ticker. It respects ctx for graceful
// shutdown.
func StartAlertSweep(ctx context.Context, sweeper AlertSweeper, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("alert_sweep: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("alert_sweep: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("alert_sweep: shutting down")
				return
			case <-ticker.C:
				sweepOnce(ctx, sweeper)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, sweeper AlertSweeper) {
	n, err := sweeper.SweepRecovered(ctx)
	if err != nil {
		log.Error().Err(err).Msg("alert_sweep: failed")
		return
	}
	if n > 0 {
		log.Info().Int64("cleared", n).Msg("alert_sweep: cleared recovered alerts")
	}
}
