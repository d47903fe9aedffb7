package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// runEvery runs task every interval until ctx is cancelled, then returns
// ctx.Err(). A run that overlaps the next tick pushes that tick back.
func runEvery(ctx context.Context, name string, interval time.Duration, task func(), logger *slog.Logger) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("scheduling %s: %w", name, err)
	}

	s.Start()
	logger.Info("scheduled job started", slog.String("job", name), slog.Duration("interval", interval))

	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", slog.String("job", name), slog.String("error", err.Error()))
	}
	return ctx.Err()
}
