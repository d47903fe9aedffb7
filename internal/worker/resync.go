// Package worker holds background jobs run under the supervisor tree.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/service"
)

// Syncer is the part of service.SyncService the resync job needs.
type Syncer interface {
	Enabled() bool
	SyncAll(ctx context.Context) (*service.BatchResult, error)
}

var _ Syncer = (*service.SyncService)(nil)

// Resync periodically refreshes every user's library.
type Resync struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

func NewResync(syncer Syncer, interval time.Duration, logger *slog.Logger) *Resync {
	return &Resync{syncer: syncer, interval: interval, logger: logger}
}

// Serve runs the scheduler until ctx is cancelled. With no interval or no
// Steam API key it returns suture.ErrDoNotRestart straight away.
func (r *Resync) Serve(ctx context.Context) error {
	if r.interval <= 0 || !r.syncer.Enabled() {
		r.logger.Info("scheduled resync disabled",
			slog.Duration("interval", r.interval),
			slog.Bool("steam_enabled", r.syncer.Enabled()),
		)
		return suture.ErrDoNotRestart
	}
	return runEvery(ctx, r.String(), r.interval, func() { r.run(ctx) }, r.logger)
}

func (r *Resync) run(ctx context.Context) {
	start := time.Now()
	res, err := r.syncer.SyncAll(ctx)
	if err != nil {
		r.logger.Error("scheduled resync failed", slog.String("error", err.Error()))
		return
	}
	metrics.ResyncRun(len(res.Synced), len(res.Failed))
	r.logger.Info("scheduled resync completed",
		slog.Int("synced", len(res.Synced)),
		slog.Int("failed", len(res.Failed)),
		slog.Duration("duration", time.Since(start)),
	)
}

func (r *Resync) String() string {
	return "library-resync"
}
