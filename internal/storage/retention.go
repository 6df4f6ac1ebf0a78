package storage

// retention.go removes stored blobs once they outlive the retention period.
//
// The sweep runs once on start and then every interval until its context is
// cancelled. A failed sweep is logged and retried on the next tick; it never
// stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes every blob uploaded before a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, before time.Time) (int, error)
}

// RetentionConfig controls the background sweep.
type RetentionConfig struct {
	MaxAge   time.Duration // blobs older than this are deleted; zero disables
	Interval time.Duration // time between sweeps (default: 15m)
}

// RunRetention sweeps s until ctx is cancelled. It returns immediately when
// MaxAge is zero.
func RunRetention(ctx context.Context, s Sweeper, cfg RetentionConfig) {
	if cfg.MaxAge <= 0 {
		slog.Info("blob retention disabled")
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}

	slog.Info("blob retention started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.Interval.String(),
	)

	sweepOnce(ctx, s, cfg.MaxAge, time.Now)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("blob retention stopped")
			return
		case <-ticker.C:
			sweepOnce(ctx, s, cfg.MaxAge, time.Now)
		}
	}
}

func sweepOnce(ctx context.Context, s Sweeper, maxAge time.Duration, now func() time.Time) {
	start := time.Now()
	removed, err := s.Sweep(ctx, now().Add(-maxAge))
	if err != nil {
		slog.Error("blob sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("expired blobs removed",
			"count", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Sweep deletes blobs uploaded before the cutoff.
func (s *MemoryStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, b := range s.blobs {
		if b.Meta.UploadedAt.Before(before) {
			delete(s.blobs, id)
			removed++
		}
	}
	return removed, nil
}
