package httpserver

import (
	"context"
	"log/slog"
	"time"

	"pastebin/internal/metrics"
	"pastebin/internal/storage"
)

// RunJanitor removes expired pastes every interval until ctx is done. Reads
// already expire pastes lazily, so the janitor only reclaims space held by
// pastes nobody asks for again. A non-positive interval returns immediately.
func RunJanitor(ctx context.Context, store storage.Store, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			cleanOnce(ctx, store, now, logger)
		}
	}
}

func cleanOnce(ctx context.Context, store storage.Store, now time.Time, logger *slog.Logger) int {
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	removed, err := store.DeleteExpired(c, now)
	if err != nil {
		if logger != nil {
			logger.Error("janitor error", "error", err)
		}
		return 0
	}
	if removed > 0 {
		metrics.PastesExpired.WithLabelValues("sweep").Add(float64(removed))
		if logger != nil {
			logger.Info("janitor removed expired pastes", "count", removed)
		}
	}
	return removed
}
