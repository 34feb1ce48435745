package schedule

import (
	"context"
	"log"
	"time"
)

// Every runs fn immediately and then on every tick until the context is
// cancelled. The pipeline and sweep are both plain functions; this is the
// only place that knows about periodic invocation.
func Every(ctx context.Context, interval time.Duration, name string, logger *log.Logger, fn func(context.Context)) {
	logger.Printf("Starting %s every %v", name, interval)

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("Stopping %s: %v", name, ctx.Err())
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
