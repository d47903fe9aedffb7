package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/service"
)

// Snapshotter is the part of service.PlaytimeService the snapshot job needs.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*model.SnapshotRun, error)
}

var _ Snapshotter = (*service.PlaytimeService)(nil)

// Snapshot periodically records every user's playtime. It reads only the
// store, so it runs without a Steam API key.
type Snapshot struct {
	snapshotter Snapshotter
	interval    time.Duration
	logger      *slog.Logger
}

func NewSnapshot(snapshotter Snapshotter, interval time.Duration, logger *slog.Logger) *Snapshot {
	return &Snapshot{snapshotter: snapshotter, interval: interval, logger: logger}
}

// Serve runs the scheduler until ctx is cancelled. With no interval it
// returns suture.ErrDoNotRestart straight away.
func (s *Snapshot) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("playtime snapshots disabled")
		return suture.ErrDoNotRestart
	}
	return runEvery(ctx, s.String(), s.interval, func() { s.run(ctx) }, s.logger)
}

func (s *Snapshot) run(ctx context.Context) {
	if _, err := s.snapshotter.Snapshot(ctx); err != nil {
		s.logger.Error("scheduled playtime snapshot failed", slog.String("error", err.Error()))
	}
}

func (s *Snapshot) String() string {
	return "playtime-snapshot"
}
