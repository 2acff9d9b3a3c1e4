package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elections-scraper/internal/observability"
)

// GracefulShutdown returns a run context that ends on SIGINT, SIGTERM or
// after shutdownTimeout. The returned cancel also stops signal delivery.
func GracefulShutdown(logger *observability.Logger, shutdownTimeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
