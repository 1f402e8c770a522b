package service

import (
	"context"
	"log/slog"
	"time"
)

// Warmer keeps the flat platform catalog hash warm by rebuilding it from
// the store on a timer. Mutations still invalidate immediately; the warmer
// only bounds how long reads pay the store round trip after one.
type Warmer struct {
	platform *Platform
	interval time.Duration
	logger   *slog.Logger
}

// NewWarmer creates a catalog warmer.
func NewWarmer(platform *Platform, interval time.Duration, logger *slog.Logger) *Warmer {
	return &Warmer{platform: platform, interval: interval, logger: logger}
}

// Run rebuilds the catalog every interval until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) {
	w.logger.Info("platform cache warmer started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("platform cache warmer stopped")
			return
		case <-ticker.C:
			if _, err := w.platform.RefreshCatalog(ctx); err != nil {
				w.logger.Warn("platform catalog refresh failed", "error", err)
			}
		}
	}
}
