package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
	"github.com/sakif/steam-arena/internal/steam"
)

const DefaultSyncConcurrency = 4

// SteamAPI is the subset of *steam.Client the sync service calls.
type SteamAPI interface {
	Enabled() bool
	GetPlayerSummary(ctx context.Context, steamID string) (*steam.Player, error)
	GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
	GetSchemaForGame(ctx context.Context, appID int64) ([]steam.AchievementSchema, error)
	GetPlayerAchievements(ctx context.Context, steamID string, appID int64) ([]steam.PlayerAchievement, error)
	GetGlobalAchievementPercentages(ctx context.Context, appID int64) (map[string]float64, error)
	GetAppDetails(ctx context.Context, appID int64) (*steam.AppDetails, error)
}

var _ SteamAPI = (*steam.Client)(nil)

// SyncRepos groups the repositories the sync service writes to.
type SyncRepos struct {
	Users        repository.UserRepository
	Games        repository.GameRepository
	Ownership    repository.OwnershipRepository
	Achievements repository.AchievementRepository
	Groups       repository.GroupRepository
	History      repository.SyncHistoryRepository
	Taxonomy     repository.TaxonomyRepository
}

// SyncResult counts what one sync run wrote.
type SyncResult struct {
	Type    model.SyncType `json:"syncType"`
	New     int            `json:"new"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped,omitempty"`
}

func (r *SyncResult) Items() int {
	return r.New + r.Updated
}

// BatchResult reports a fan-out sync over several users. A failure for one
// user does not stop the others.
type BatchResult struct {
	Synced []string          `json:"synced"`
	Failed map[string]string `json:"failed"`
}

// SyncService pulls profiles, libraries and achievements from Steam into the
// store. Ownership upserts keep total playtime monotonic, so a resync never
// lowers a stored value. Every run leaves one sync history row.
type SyncService struct {
	steam       SteamAPI
	repos       SyncRepos
	concurrency int
	logger      *slog.Logger
}

func NewSyncService(api SteamAPI, repos SyncRepos, concurrency int, logger *slog.Logger) *SyncService {
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	return &SyncService{steam: api, repos: repos, concurrency: concurrency, logger: logger}
}

func (s *SyncService) Enabled() bool {
	return s.steam.Enabled()
}

// Register creates or refreshes the profile for steamID and pulls its
// library. A library failure does not undo the profile.
func (s *SyncService) Register(ctx context.Context, steamID string) (*model.User, *SyncResult, error) {
	user, err := s.SyncProfile(ctx, steamID)
	if err != nil {
		return nil, nil, err
	}
	games, err := s.SyncGames(ctx, user.ID)
	if err != nil {
		s.logger.Warn("library sync after registration failed",
			slog.String("user", user.ID),
			slog.String("error", err.Error()),
		)
		return user, nil, nil
	}
	return user, games, nil
}

// SyncProfile upserts the user behind a SteamID64.
func (s *SyncService) SyncProfile(ctx context.Context, steamID string) (*model.User, error) {
	steamID, err := validateSteamID(steamID)
	if err != nil {
		return nil, err
	}
	started := time.Now().UTC()

	player, err := s.steam.GetPlayerSummary(ctx, steamID)
	if err != nil {
		if existing, lookupErr := s.repos.Users.GetUserBySteamID(ctx, steamID); lookupErr == nil {
			s.record(ctx, existing.ID, model.SyncProfile, started, 0, err)
		}
		return nil, upstream(err)
	}
	if player == nil {
		return nil, apperror.NotFound("steam profile", steamID)
	}

	user := &model.User{
		SteamID:     steamID,
		PersonaName: player.PersonaName,
		ProfileURL:  player.ProfileURL,
		AvatarURL:   firstNonEmpty(player.AvatarFull, player.Avatar),
		CountryCode: player.CountryCode,
	}
	created, err := s.repos.Users.UpsertUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("saving profile %s: %w", steamID, err)
	}

	s.record(ctx, user.ID, model.SyncProfile, started, 1, nil)
	s.logger.Info("profile synced",
		slog.String("user", user.ID),
		slog.String("steam_id", steamID),
		slog.Bool("created", created),
	)
	return user, nil
}

// SyncGames pulls the user's library and upserts games and ownership facts.
func (s *SyncService) SyncGames(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	result := &SyncResult{Type: model.SyncGames}

	owned, err := s.steam.GetOwnedGames(ctx, user.SteamID)
	if err != nil {
		s.record(ctx, user.ID, model.SyncGames, started, 0, err)
		return nil, upstream(err)
	}

	for _, og := range owned {
		game := &model.Game{AppID: og.AppID, Name: og.DisplayName(), IconURL: og.IconURL()}
		if _, err := s.repos.Games.UpsertGame(ctx, game); err != nil {
			s.record(ctx, user.ID, model.SyncGames, started, result.Items(), err)
			return nil, fmt.Errorf("saving game %d: %w", og.AppID, err)
		}
		created, err := s.repos.Ownership.UpsertOwnership(ctx, &model.Ownership{
			UserID:         user.ID,
			GameID:         game.ID,
			PlaytimeTotal:  max(og.PlaytimeForever, 0),
			PlaytimeRecent: max(og.Playtime2Weeks, 0),
			LastPlayed:     og.LastPlayed(),
		})
		if err != nil {
			s.record(ctx, user.ID, model.SyncGames, started, result.Items(), err)
			return nil, fmt.Errorf("saving ownership of %d: %w", og.AppID, err)
		}
		if created {
			result.New++
		} else {
			result.Updated++
		}
	}

	s.record(ctx, user.ID, model.SyncGames, started, result.Items(), nil)
	s.logger.Info("library synced",
		slog.String("user", user.ID),
		slog.Int("new", result.New),
		slog.Int("updated", result.Updated),
	)
	return result, nil
}

// SyncAchievements refreshes definitions and unlocks for every game the user
// has played. Games without stats are skipped.
func (s *SyncService) SyncAchievements(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	result := &SyncResult{Type: model.SyncAchievements}

	games, err := s.repos.Ownership.UserGames(ctx, user.ID, repository.SortByPlaytime)
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}

	for _, g := range games {
		if g.PlaytimeTotal == 0 {
			result.Skipped++
			continue
		}
		written, err := s.syncGameAchievements(ctx, user, g)
		if errors.Is(err, steam.ErrNoStats) {
			result.Skipped++
			continue
		}
		if err != nil {
			s.record(ctx, user.ID, model.SyncAchievements, started, result.Items(), err)
			return nil, err
		}
		result.Updated += written
	}

	s.record(ctx, user.ID, model.SyncAchievements, started, result.Items(), nil)
	s.logger.Info("achievements synced",
		slog.String("user", user.ID),
		slog.Int("written", result.Updated),
		slog.Int("skipped_games", result.Skipped),
	)
	return result, nil
}

func (s *SyncService) syncGameAchievements(ctx context.Context, user *model.User, g model.OwnedGame) (int, error) {
	unlocks, err := s.steam.GetPlayerAchievements(ctx, user.SteamID, g.AppID)
	if err != nil {
		if errors.Is(err, steam.ErrNoStats) {
			return 0, err
		}
		return 0, upstream(err)
	}
	if len(unlocks) == 0 {
		return 0, steam.ErrNoStats
	}
	schema, err := s.steam.GetSchemaForGame(ctx, g.AppID)
	if err != nil {
		return 0, upstream(err)
	}
	percents, err := s.steam.GetGlobalAchievementPercentages(ctx, g.AppID)
	if err != nil {
		// Percentages are decoration; definitions and unlocks still count.
		s.logger.Debug("global percentages unavailable", slog.Int64("app_id", g.AppID), slog.String("error", err.Error()))
		percents = nil
	}

	ids := make(map[string]string, len(schema))
	for _, def := range schema {
		a := &model.Achievement{
			GameID:      g.GameID,
			APIName:     def.Name,
			DisplayName: firstNonEmpty(def.DisplayName, def.Name),
			Description: def.Description,
			Hidden:      def.Hidden != 0,
		}
		if p, ok := percents[def.Name]; ok {
			a.GlobalPercent = &p
		}
		if err := s.repos.Achievements.UpsertAchievement(ctx, a); err != nil {
			return 0, fmt.Errorf("saving achievement %s of %d: %w", def.Name, g.AppID, err)
		}
		ids[def.Name] = a.ID
	}

	written := 0
	for _, u := range unlocks {
		achievementID, ok := ids[u.APIName]
		if !ok {
			continue
		}
		err := s.repos.Achievements.UpsertUserAchievement(ctx, &model.UserAchievement{
			UserID:        user.ID,
			AchievementID: achievementID,
			Achieved:      u.Achieved != 0,
			UnlockTime:    u.Unlocked(),
		})
		if err != nil {
			return 0, fmt.Errorf("saving unlock %s of %d: %w", u.APIName, g.AppID, err)
		}
		written++
	}
	return written, nil
}

// SyncGameDetails pulls a game's store page and stores its metadata, genres
// and categories. The game need not be in anyone's library yet. The store
// API takes no key, so this works with sync disabled.
func (s *SyncService) SyncGameDetails(ctx context.Context, appID int64) (*model.GameDetail, error) {
	if appID <= 0 {
		return nil, apperror.ValidationFailed("appId", "app id must be a positive integer")
	}
	details, err := s.steam.GetAppDetails(ctx, appID)
	if err != nil {
		return nil, upstream(err)
	}
	if details == nil {
		return nil, apperror.NotFound("steam app", strconv.FormatInt(appID, 10))
	}

	// An empty store name keeps the name the library sync stored.
	name := details.Name
	if name == "" {
		if _, err := s.repos.Games.GetGameByAppID(ctx, appID); errors.Is(err, apperror.ErrNotFound) {
			name = fmt.Sprintf("Unknown Game %d", appID)
		}
	}
	game := &model.Game{
		AppID:           appID,
		Name:            name,
		HeaderImage:     details.HeaderImage,
		Developer:       details.Developer(),
		Publisher:       details.Publisher(),
		MetacriticScore: details.MetacriticScore(),
	}
	genres, categories := details.GenreNames(), details.CategoryNames()
	created, err := s.repos.Taxonomy.SaveGameDetails(ctx, game, genres, categories)
	if err != nil {
		return nil, fmt.Errorf("saving details of %d: %w", appID, err)
	}

	s.logger.Info("game details synced",
		slog.Int64("app_id", appID),
		slog.String("game", game.ID),
		slog.Bool("created", created),
		slog.Int("genres", len(genres)),
	)
	stored, err := s.repos.Games.GetGameByID(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading game %s: %w", game.ID, err)
	}
	return &model.GameDetail{Game: *stored, Genres: sortedNames(genres), Categories: sortedNames(categories)}, nil
}

// Sync dispatches one sync kind for an existing user.
func (s *SyncService) Sync(ctx context.Context, userID string, kind model.SyncType) (*SyncResult, error) {
	switch kind {
	case model.SyncProfile:
		user, err := s.lookupUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if _, err := s.SyncProfile(ctx, user.SteamID); err != nil {
			return nil, err
		}
		return &SyncResult{Type: model.SyncProfile, Updated: 1}, nil
	case model.SyncGames:
		return s.SyncGames(ctx, userID)
	case model.SyncAchievements:
		return s.SyncAchievements(ctx, userID)
	}
	return nil, apperror.ValidationFailed("kind",
		fmt.Sprintf("unknown sync kind %q: use profile, games or achievements", kind))
}

// SyncGroup resyncs the libraries of every member of a group.
func (s *SyncService) SyncGroup(ctx context.Context, groupID string) (*BatchResult, error) {
	groupID, err := requireID("id", groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnabled(); err != nil {
		return nil, err
	}
	members, err := s.repos.Groups.GroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return s.syncMany(ctx, ids)
}

// SyncAll resyncs every known library. The scheduler calls it.
func (s *SyncService) SyncAll(ctx context.Context) (*BatchResult, error) {
	if err := s.requireEnabled(); err != nil {
		return nil, err
	}
	ids, err := s.repos.Users.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return s.syncMany(ctx, ids)
}

// History returns the most recent sync runs of a user.
func (s *SyncService) History(ctx context.Context, userID string, limit int) ([]model.SyncRecord, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repos.History.ListSyncHistory(ctx, user.ID, listOptions(limit, 0).Limit)
}

// syncMany runs SyncGames for ids with bounded concurrency. Only context
// cancellation aborts the batch.
func (s *SyncService) syncMany(ctx context.Context, ids []string) (*BatchResult, error) {
	result := &BatchResult{Synced: []string{}, Failed: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.SyncGames(gctx, id)
			if err := gctx.Err(); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[id] = err.Error()
				return nil
			}
			result.Synced = append(result.Synced, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("batch sync finished",
		slog.Int("synced", len(result.Synced)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *SyncService) lookupUser(ctx context.Context, userID string) (*model.User, error) {
	userID, err := requireID("id", userID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnabled(); err != nil {
		return nil, err
	}
	return s.repos.Users.GetUserByID(ctx, userID)
}

func (s *SyncService) requireEnabled() error {
	if !s.steam.Enabled() {
		return apperror.Upstream("steam", steam.ErrDisabled)
	}
	return nil
}

// record writes the sync history row even when ctx is already cancelled.
func (s *SyncService) record(ctx context.Context, userID string, kind model.SyncType, started time.Time, items int, runErr error) {
	rec := &model.SyncRecord{
		UserID:      userID,
		Type:        kind,
		Status:      model.SyncCompleted,
		ItemsSynced: items,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	if runErr != nil {
		rec.Status = model.SyncFailed
		rec.ErrorMessage = runErr.Error()
	}
	metrics.SyncRun(string(kind), string(rec.Status), items)

	if err := s.repos.History.RecordSync(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to record sync",
			slog.String("user", userID),
			slog.String("type", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// upstream classifies a Steam failure. Context errors pass through so
// callers can tell a cancelled request from a Steam outage.
func upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Upstream("steam", err)
}

func validateSteamID(steamID string) (string, error) {
	steamID = strings.TrimSpace(steamID)
	if steamID == "" {
		return "", apperror.ValidationFailed("steamId", "steam id is required")
	}
	for _, r := range steamID {
		if r < '0' || r > '9' {
			return "", apperror.ValidationFailed("steamId", "steam id must be numeric")
		}
	}
	return steamID, nil
}

// sortedNames matches what GameTaxonomy reads back: trimmed, unique, sorted.
func sortedNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, dup := seen[n]; dup || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
