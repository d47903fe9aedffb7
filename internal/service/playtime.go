package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

// PlaytimeService records playtime snapshots and derives yearly and monthly
// playtime from them.
//
// Steam only reports lifetime totals, so time played in a period is the
// difference between the last snapshot before the period ends and the last
// snapshot before it starts. A game's first snapshot counts in full toward
// the period it falls in.
type PlaytimeService struct {
	history repository.PlaytimeHistoryRepository
	now     func() time.Time
	logger  *slog.Logger
}

func NewPlaytimeService(history repository.PlaytimeHistoryRepository, logger *slog.Logger) *PlaytimeService {
	return &PlaytimeService{
		history: history,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Snapshot copies every ownership fact's total playtime into the history.
// The snapshot worker calls it on a schedule.
func (s *PlaytimeService) Snapshot(ctx context.Context) (*model.SnapshotRun, error) {
	at := s.now()
	n, err := s.history.RecordSnapshot(ctx, at)
	if err != nil {
		s.logger.Error("failed to record playtime snapshot", slog.String("error", err.Error()))
		return nil, fmt.Errorf("recording snapshot: %w", err)
	}
	metrics.SnapshotRecorded(n)
	s.logger.Info("playtime snapshot recorded", slog.Int("rows", n))
	return &model.SnapshotRun{RecordedAt: at, Created: n}, nil
}

// SnapshotHistory counts snapshot rows per day, newest first.
func (s *PlaytimeService) SnapshotHistory(ctx context.Context, limit int) ([]model.SnapshotDay, error) {
	days, err := s.history.SnapshotDays(ctx, listOptions(limit, 0).Limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot days: %w", err)
	}
	return days, nil
}

// Yearly returns one entry per calendar year that has a snapshot, newest first.
func (s *PlaytimeService) Yearly(ctx context.Context, userID string) ([]model.PeriodStats, error) {
	points, unlocks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return periodStats(points, unlocks, yearOf), nil
}

// Monthly returns one entry per calendar month that has a snapshot, newest
// first. A non-zero year keeps only that year's months.
func (s *PlaytimeService) Monthly(ctx context.Context, userID string, year int) ([]model.PeriodStats, error) {
	if year != 0 && (year < 1970 || year > 9999) {
		return nil, apperror.ValidationFailed("year", "year must be between 1970 and 9999")
	}
	points, unlocks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := periodStats(points, unlocks, monthOf)
	if year == 0 {
		return stats, nil
	}
	out := []model.PeriodStats{}
	for _, st := range stats {
		if st.Year == year {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *PlaytimeService) load(ctx context.Context, userID string) ([]model.PlaytimePoint, []time.Time, error) {
	userID, err := requireID("id", userID)
	if err != nil {
		return nil, nil, err
	}
	points, err := s.history.PlaytimeHistory(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	unlocks, err := s.history.UnlockTimes(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading unlock times: %w", err)
	}
	return points, unlocks, nil
}

// period is the half-open interval [start, end). month is 0 for a year.
type period struct {
	year, month int
	start, end  time.Time
}

func yearOf(t time.Time) period {
	start := time.Date(t.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return period{year: start.Year(), start: start, end: start.AddDate(1, 0, 0)}
}

func monthOf(t time.Time) period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return period{year: start.Year(), month: int(start.Month()), start: start, end: start.AddDate(0, 1, 0)}
}

func (p period) contains(t time.Time) bool {
	return !t.Before(p.start) && t.Before(p.end)
}

// periodStats computes the stats of every period holding at least one
// snapshot. Negative differences (after a playtime reset) count as zero.
func periodStats(points []model.PlaytimePoint, unlocks []time.Time, periodOf func(time.Time) period) []model.PeriodStats {
	series := map[string][]model.PlaytimePoint{}
	periods := map[[2]int]period{}
	for _, p := range points {
		series[p.GameID] = append(series[p.GameID], p)
		per := periodOf(p.RecordedAt)
		periods[[2]int{per.year, per.month}] = per
	}
	gameIDs := make([]string, 0, len(series))
	for id, s := range series {
		sort.SliceStable(s, func(i, j int) bool { return s[i].RecordedAt.Before(s[j].RecordedAt) })
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)

	ordered := make([]period, 0, len(periods))
	for _, per := range periods {
		ordered = append(ordered, per)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start.After(ordered[j].start) })

	out := make([]model.PeriodStats, 0, len(ordered))
	for _, per := range ordered {
		st := model.PeriodStats{Year: per.year, Month: per.month}
		if per.month != 0 {
			st.MonthName = time.Month(per.month).String()
		}

		var best *model.PeriodGame
		for _, id := range gameIDs {
			s := series[id]
			end, seen := valueBefore(s, per.end)
			if !seen {
				continue
			}
			if per.contains(s[0].RecordedAt) {
				st.NewGamesCount++
			}
			start, _ := valueBefore(s, per.start)
			played := end - start
			if played <= 0 {
				continue
			}
			st.TotalPlaytimeMinutes += played
			st.GamesPlayedCount++
			if best == nil || played > best.PlaytimeMinutes || (played == best.PlaytimeMinutes && s[0].Name < best.Name) {
				best = &model.PeriodGame{GameID: id, AppID: s[0].AppID, Name: s[0].Name, PlaytimeMinutes: played}
			}
		}
		if best != nil {
			best.PlaytimeHours = round(float64(best.PlaytimeMinutes)/60, 1)
		}
		st.MostPlayedGame = best
		st.TotalPlaytimeHours = round(float64(st.TotalPlaytimeMinutes)/60, 1)

		for _, u := range unlocks {
			if per.contains(u) {
				st.AchievementsUnlocked++
			}
		}
		out = append(out, st)
	}
	return out
}

// valueBefore returns the last total recorded strictly before t.
func valueBefore(s []model.PlaytimePoint, t time.Time) (int64, bool) {
	var v int64
	found := false
	for _, p := range s {
		if !p.RecordedAt.Before(t) {
			break
		}
		v, found = p.PlaytimeTotal, true
	}
	return v, found
}
