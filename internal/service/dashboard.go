package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

const recentSyncLimit = 5

// CompareService compares ad-hoc sets of users.
type CompareService struct {
	agg    Aggregator
	logger *slog.Logger
}

func NewCompareService(agg Aggregator, logger *slog.Logger) *CompareService {
	return &CompareService{agg: agg, logger: logger}
}

// Compare accepts 2 to 5 distinct user ids. Duplicates and blanks are
// dropped before the count is checked; any unknown id fails the call.
func (s *CompareService) Compare(ctx context.Context, userIDs []string) (*aggregate.Comparison, error) {
	cmp, err := s.agg.Compare(ctx, aggregate.UserSet(userIDs))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("users compared",
		slog.Int("users", len(cmp.Users)),
		slog.Int("common", len(cmp.CommonGames)),
	)
	return cmp, nil
}

// DashboardService serves the global and per-user dashboards.
type DashboardService struct {
	stats    repository.StatsRepository
	users    repository.UserRepository
	backlog  repository.BacklogRepository
	history  repository.SyncHistoryRepository
	taxonomy repository.TaxonomyRepository
	agg      Aggregator
	logger   *slog.Logger
}

func NewDashboardService(
	stats repository.StatsRepository,
	users repository.UserRepository,
	backlog repository.BacklogRepository,
	history repository.SyncHistoryRepository,
	taxonomy repository.TaxonomyRepository,
	agg Aggregator,
	logger *slog.Logger,
) *DashboardService {
	return &DashboardService{
		stats:    stats,
		users:    users,
		backlog:  backlog,
		history:  history,
		taxonomy: taxonomy,
		agg:      agg,
		logger:   logger,
	}
}

func (s *DashboardService) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	stats, err := s.stats.GlobalStats(ctx)
	if err != nil {
		s.logger.Error("failed to load global stats", slog.String("error", err.Error()))
		return nil, fmt.Errorf("global stats: %w", err)
	}
	return stats, nil
}

func (s *DashboardService) UserDashboard(ctx context.Context, userID string) (*model.UserDashboard, error) {
	userID, err := requireID("id", userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.agg.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.backlog.BacklogCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("backlog counts: %w", err)
	}
	syncs, err := s.history.ListSyncHistory(ctx, userID, recentSyncLimit)
	if err != nil {
		return nil, fmt.Errorf("sync history: %w", err)
	}

	return &model.UserDashboard{
		User:           *user,
		Stats:          *stats,
		CompletionRate: stats.CompletionRate(),
		Backlog:        counts,
		RecentSyncs:    syncs,
	}, nil
}

// PlaytimeByGenre breaks the user's playtime down by store genre. Games
// without synced store details are not counted.
func (s *DashboardService) PlaytimeByGenre(ctx context.Context, userID string) ([]model.GenrePlaytime, error) {
	userID, err := requireID("id", userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.taxonomy.PlaytimeByGenre(ctx, userID)
	if err != nil {
		return nil, err
	}
	return genreShares(rows), nil
}

// genreShares fills in hours and each genre's percentage of the summed
// genre playtime. Hours are whole hours, rounded down.
func genreShares(rows []model.GenrePlaytime) []model.GenrePlaytime {
	var total int64
	for _, r := range rows {
		total += r.TotalPlaytimeMinutes
	}
	for i := range rows {
		r := &rows[i]
		r.TotalPlaytimeHours = r.TotalPlaytimeMinutes / 60
		r.AvgPlaytimeMinutes = round(r.AvgPlaytimeMinutes, 2)
		if total > 0 {
			r.Percentage = round(float64(r.TotalPlaytimeMinutes)/float64(total)*100, 2)
		}
	}
	return rows
}
