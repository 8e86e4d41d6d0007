package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Every calls fn immediately and then once per interval until ctx is done.
// Errors from fn are logged and do not stop the schedule. Ticks that fire
// while fn is still running are dropped.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	log := zap.L().With(zap.String("component", "ingest.schedule"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			log.Error("ingest: scheduled run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
