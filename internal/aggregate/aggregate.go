// Package aggregate computes group intersections and user comparisons over
// ownership facts.
//
// Both computations share one algorithm: resolve a member set through a
// MemberSetProvider, load each member's library from a snapshot, and fold
// the libraries into per-game rows. Every read for one computation happens
// inside a single repository snapshot, so a result never mixes membership
// or playtime from before and after a concurrent write.
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

const (
	MinCompareUsers = 2
	MaxCompareUsers = 5
)

// Row is one game in an intersection. Owners is a sorted subset of the
// member set and OwnerCount is always len(Owners).
type Row struct {
	GameID        string
	AppID         int64
	Name          string
	Owners        []string
	OwnerCount    int
	TotalPlaytime int64
	AvgPlaytime   float64
}

// Intersection is the ranked union of the members' libraries.
type Intersection struct {
	Members []string
	Rows    []Row
}

// OwnedByAll returns the rows every member owns.
func (in *Intersection) OwnedByAll() []Row {
	n := len(in.Members)
	out := []Row{}
	for _, r := range in.Rows {
		if r.OwnerCount == n {
			out = append(out, r)
		}
	}
	return out
}

// OwnedByMajority returns the rows owned by at least half of the members
// but not by all of them.
func (in *Intersection) OwnedByMajority() []Row {
	n := len(in.Members)
	out := []Row{}
	for _, r := range in.Rows {
		if r.OwnerCount < n && float64(r.OwnerCount) >= float64(n)/2 {
			out = append(out, r)
		}
	}
	return out
}

// OwnershipPercentage is the share of members owning the row's game.
func (in *Intersection) OwnershipPercentage(r Row) float64 {
	if len(in.Members) == 0 {
		return 0
	}
	return float64(r.OwnerCount) / float64(len(in.Members)) * 100
}

// Comparison is the side-by-side rollup of an ad-hoc set of users.
type Comparison struct {
	Users              []model.UserStats
	CommonGames        []Row
	TotalUniqueGames   int
	PlaytimeRanking    []string
	AchievementRanking []string
}

// AchievementCounter looks up achievement totals for a user.
// repository.Snapshot satisfies it.
type AchievementCounter interface {
	AchievementCounts(ctx context.Context, userID string) (total, unlocked int, err error)
}

// Engine runs aggregations against a snapshot-capable store.
type Engine struct {
	store repository.SnapshotReader
}

func NewEngine(store repository.SnapshotReader) *Engine {
	return &Engine{store: store}
}

// GamesOwnedBy is the ownership index lookup by user.
func (e *Engine) GamesOwnedBy(ctx context.Context, userID string) ([]model.OwnedGame, error) {
	var games []model.OwnedGame
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		var err error
		games, err = snap.GamesOwnedBy(ctx, userID)
		return err
	})
	return games, err
}

// OwnersOf is the ownership index lookup by game.
func (e *Engine) OwnersOf(ctx context.Context, gameID string) ([]model.GameOwner, error) {
	var owners []model.GameOwner
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		var err error
		owners, err = snap.OwnersOf(ctx, gameID)
		return err
	})
	return owners, err
}

// Intersect ranks every game owned by at least one member of src.
// An empty member set yields an empty result, not an error.
func (e *Engine) Intersect(ctx context.Context, src MemberSetProvider) (*Intersection, error) {
	var result *Intersection
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		members, err := src.Members(ctx, snap)
		if err != nil {
			return err
		}
		libraries, err := loadLibraries(ctx, snap, members)
		if err != nil {
			return err
		}
		result = &Intersection{Members: members, Rows: intersect(members, libraries)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Compare rolls up 2 to 5 distinct users and finds the games they all own.
// Any unknown user fails the whole comparison.
func (e *Engine) Compare(ctx context.Context, src MemberSetProvider) (*Comparison, error) {
	var result *Comparison
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		members, err := src.Members(ctx, snap)
		if err != nil {
			return err
		}
		result, err = compare(ctx, snap, members)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompareGroup compares the members of a persisted group. The group header
// and the comparison come from the same snapshot, so the member count in the
// header always matches the users in the comparison.
func (e *Engine) CompareGroup(ctx context.Context, groupID string) (*model.Group, *Comparison, error) {
	var (
		group  *model.Group
		result *Comparison
	)
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		var err error
		if group, err = snap.GetGroup(ctx, groupID); err != nil {
			return err
		}
		members, err := snap.GroupMemberIDs(ctx, groupID)
		if err != nil {
			return err
		}
		result, err = compare(ctx, snap, members)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return group, result, nil
}

func compare(ctx context.Context, snap repository.Snapshot, members []string) (*Comparison, error) {
	if err := validateCompareSize(len(members)); err != nil {
		return nil, err
	}
	libraries, err := loadLibraries(ctx, snap, members)
	if err != nil {
		return nil, err
	}

	users := make([]model.UserStats, 0, len(members))
	for _, id := range members {
		stats, err := rollup(ctx, id, libraries[id], snap)
		if err != nil {
			return nil, err
		}
		users = append(users, stats)
	}

	in := &Intersection{Members: members, Rows: intersect(members, libraries)}
	return &Comparison{
		Users:              users,
		CommonGames:        in.OwnedByAll(),
		TotalUniqueGames:   len(in.Rows),
		PlaytimeRanking:    rankBy(users, func(s model.UserStats) int64 { return s.TotalPlaytime }),
		AchievementRanking: rankBy(users, func(s model.UserStats) int64 { return int64(s.AchievementsUnlocked) }),
	}, nil
}

// UserStats is the single-user rollup used by the dashboard.
func (e *Engine) UserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	var stats model.UserStats
	err := e.store.ReadSnapshot(ctx, func(snap repository.Snapshot) error {
		games, err := snap.GamesOwnedBy(ctx, userID)
		if err != nil {
			return err
		}
		stats, err = rollup(ctx, userID, games, snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func validateCompareSize(n int) error {
	if n < MinCompareUsers {
		return apperror.ValidationFailed("userIds",
			fmt.Sprintf("at least %d distinct users are required", MinCompareUsers))
	}
	if n > MaxCompareUsers {
		return apperror.ValidationFailed("userIds",
			fmt.Sprintf("at most %d users can be compared", MaxCompareUsers))
	}
	return nil
}

func loadLibraries(ctx context.Context, snap repository.Snapshot, members []string) (map[string][]model.OwnedGame, error) {
	libraries := make(map[string][]model.OwnedGame, len(members))
	for _, id := range members {
		games, err := snap.GamesOwnedBy(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading library of %s: %w", id, err)
		}
		libraries[id] = games
	}
	return libraries, nil
}

// intersect folds member libraries into ranked rows.
//
// Order: owner count desc, total playtime desc, name asc, game id asc.
func intersect(members []string, libraries map[string][]model.OwnedGame) []Row {
	byGame := map[string]*Row{}
	for _, member := range members {
		for _, g := range libraries[member] {
			row, ok := byGame[g.GameID]
			if !ok {
				row = &Row{GameID: g.GameID, AppID: g.AppID, Name: g.Name}
				byGame[g.GameID] = row
			}
			row.Owners = append(row.Owners, member)
			row.TotalPlaytime += g.PlaytimeTotal
		}
	}

	rows := make([]Row, 0, len(byGame))
	for _, row := range byGame {
		sort.Strings(row.Owners)
		row.OwnerCount = len(row.Owners)
		row.AvgPlaytime = float64(row.TotalPlaytime) / float64(row.OwnerCount)
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.OwnerCount != b.OwnerCount {
			return a.OwnerCount > b.OwnerCount
		}
		if a.TotalPlaytime != b.TotalPlaytime {
			return a.TotalPlaytime > b.TotalPlaytime
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.GameID < b.GameID
	})
	return rows
}

// rollup computes the per-user statistics. A game counts as played once its
// total playtime is above zero.
func rollup(ctx context.Context, userID string, games []model.OwnedGame, counter AchievementCounter) (model.UserStats, error) {
	stats := model.UserStats{UserID: userID, TotalGames: len(games)}
	for _, g := range games {
		stats.TotalPlaytime += g.PlaytimeTotal
		if g.PlaytimeTotal > 0 {
			stats.GamesPlayed++
		}
	}
	total, unlocked, err := counter.AchievementCounts(ctx, userID)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("counting achievements of %s: %w", userID, err)
	}
	stats.TotalAchievements = total
	stats.AchievementsUnlocked = unlocked
	return stats, nil
}

// rankBy orders user ids by metric descending, ties by id.
func rankBy(users []model.UserStats, metric func(model.UserStats) int64) []string {
	ranked := append([]model.UserStats(nil), users...)
	sort.SliceStable(ranked, func(i, j int) bool {
		mi, mj := metric(ranked[i]), metric(ranked[j])
		if mi != mj {
			return mi > mj
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	ids := make([]string, len(ranked))
	for i, u := range ranked {
		ids[i] = u.UserID
	}
	return ids
}
