// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite provides the implementation; tests substitute
// hand-written fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/steam-arena/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// GameSort selects the ordering of a user's library.
type GameSort string

const (
	SortByPlaytime GameSort = "playtime"
	SortByName     GameSort = "name"
	SortByRecent   GameSort = "recent"
)

type UserRepository interface {
	// UpsertUser inserts or updates a user keyed by SteamID. It fills in ID
	// and timestamps and reports whether a new row was created.
	UpsertUser(ctx context.Context, user *model.User) (bool, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserBySteamID(ctx context.Context, steamID string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	DeleteUser(ctx context.Context, id string) error
}

type GameRepository interface {
	// UpsertGame inserts or updates a game keyed by AppID.
	UpsertGame(ctx context.Context, game *model.Game) (bool, error)
	GetGameByID(ctx context.Context, id string) (*model.Game, error)
	GetGameByAppID(ctx context.Context, appID int64) (*model.Game, error)
	ListGames(ctx context.Context, search string, opts ListOptions) ([]model.Game, error)
	PopularGames(ctx context.Context, limit int) ([]model.GameWithStats, error)
	MostPlayedGames(ctx context.Context, limit int) ([]model.GameWithStats, error)
}

type OwnershipRepository interface {
	// UpsertOwnership records an ownership fact. PlaytimeTotal is kept at the
	// maximum of the stored and incoming values.
	UpsertOwnership(ctx context.Context, o *model.Ownership) (bool, error)
	ResetPlaytime(ctx context.Context, userID, gameID string) error
	UserGames(ctx context.Context, userID string, sort GameSort) ([]model.OwnedGame, error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	ListGroups(ctx context.Context, opts ListOptions) ([]model.Group, error)
	UpdateGroup(ctx context.Context, group *model.Group) error
	DeleteGroup(ctx context.Context, id string) error
	GroupMembers(ctx context.Context, groupID string) ([]model.User, error)

	// AddMembers adds every user to the group in one transaction and returns
	// the resulting member ids. Unknown users reject the whole call.
	AddMembers(ctx context.Context, groupID string, userIDs []string) ([]string, error)
	// RemoveMember returns the resulting member ids; removing a non-member
	// changes nothing.
	RemoveMember(ctx context.Context, groupID, userID string) ([]string, error)
}

type AchievementRepository interface {
	UpsertAchievement(ctx context.Context, a *model.Achievement) error
	UpsertUserAchievement(ctx context.Context, ua *model.UserAchievement) error
}

type BacklogRepository interface {
	ListBacklog(ctx context.Context, userID string, status model.BacklogStatus) ([]model.BacklogEntry, error)
	GetBacklogEntry(ctx context.Context, userID, id string) (*model.BacklogEntry, error)
	CreateBacklogEntry(ctx context.Context, e *model.BacklogEntry) error
	UpdateBacklogEntry(ctx context.Context, e *model.BacklogEntry) error
	DeleteBacklogEntry(ctx context.Context, userID, id string) error
	BacklogCounts(ctx context.Context, userID string) (map[model.BacklogStatus]int, error)
}

type SyncHistoryRepository interface {
	RecordSync(ctx context.Context, rec *model.SyncRecord) error
	ListSyncHistory(ctx context.Context, userID string, limit int) ([]model.SyncRecord, error)
}

// TaxonomyRepository stores the Steam store details of games: metadata,
// genres and categories.
type TaxonomyRepository interface {
	// SaveGameDetails upserts the game and replaces its genres and categories
	// in one transaction. It reports whether the game row was created.
	SaveGameDetails(ctx context.Context, game *model.Game, genres, categories []string) (bool, error)
	GameTaxonomy(ctx context.Context, gameID string) (genres, categories []string, err error)
	ListGenres(ctx context.Context) ([]model.Genre, error)
	// GamesByGenre fails with apperror.ErrNotFound for an unknown genre.
	GamesByGenre(ctx context.Context, genreID string, opts ListOptions) ([]model.Game, error)
	// PlaytimeByGenre sums the user's playtime per genre, highest first.
	// Percentage is left for the caller.
	PlaytimeByGenre(ctx context.Context, userID string) ([]model.GenrePlaytime, error)
}

// PlaytimeHistoryRepository keeps periodic copies of every ownership
// fact's total playtime.
type PlaytimeHistoryRepository interface {
	// RecordSnapshot copies every ownership fact with timestamp at and
	// returns the number of rows written.
	RecordSnapshot(ctx context.Context, at time.Time) (int, error)
	SnapshotDays(ctx context.Context, limit int) ([]model.SnapshotDay, error)
	// PlaytimeHistory returns every snapshot row of the user, oldest first.
	PlaytimeHistory(ctx context.Context, userID string) ([]model.PlaytimePoint, error)
	// UnlockTimes returns when the user unlocked each achievement that has a
	// known unlock time.
	UnlockTimes(ctx context.Context, userID string) ([]time.Time, error)
}

type StatsRepository interface {
	GlobalStats(ctx context.Context) (*model.GlobalStats, error)
}

// Snapshot is a read-only view of membership, ownership and achievement
// facts as of one point in time.
type Snapshot interface {
	// GamesOwnedBy fails with apperror.ErrNotFound for an unknown user.
	GamesOwnedBy(ctx context.Context, userID string) ([]model.OwnedGame, error)
	// OwnersOf fails with apperror.ErrNotFound for an unknown game.
	OwnersOf(ctx context.Context, gameID string) ([]model.GameOwner, error)
	// GroupMemberIDs fails with apperror.ErrNotFound for an unknown group.
	GroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
	// GetGroup fails with apperror.ErrNotFound for an unknown group.
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	AchievementCounts(ctx context.Context, userID string) (total, unlocked int, err error)
}

// SnapshotReader runs fn against a consistent snapshot. Writes committed
// while fn runs are not visible to it.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(Snapshot) error) error
}
