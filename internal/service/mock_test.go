package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
	"github.com/sakif/steam-arena/internal/steam"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// memStore implements every repository interface plus SnapshotReader with
// plain maps, so services and the real aggregate.Engine can run without
// SQLite. A mutex keeps it safe for the concurrent sync tests.

type memStore struct {
	mu sync.Mutex

	users        map[string]*model.User
	games        map[string]*model.Game
	owns         map[string]map[string]*model.Ownership // user → game → fact
	groups       map[string]*model.Group
	members      map[string]map[string]bool
	achievements map[string]*model.Achievement
	unlocks      map[string]*model.UserAchievement
	backlog      map[string]*model.BacklogEntry
	history      []model.SyncRecord
	genres       map[string][]string // game → genre names

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*model.User{},
		games:        map[string]*model.Game{},
		owns:         map[string]map[string]*model.Ownership{},
		groups:       map[string]*model.Group{},
		members:      map[string]map[string]bool{},
		achievements: map[string]*model.Achievement{},
		unlocks:      map[string]*model.UserAchievement{},
		backlog:      map[string]*model.BacklogEntry{},
		genres:       map[string][]string{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// --- users ---

func (m *memStore) UpsertUser(_ context.Context, u *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.SteamID == u.SteamID {
			u.ID = existing.ID
			*existing = *u
			return false, nil
		}
	}
	u.ID = m.id("user")
	stored := *u
	m.users[u.ID] = &stored
	return true, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (m *memStore) GetUserBySteamID(_ context.Context, steamID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.SteamID == steamID {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", steamID)
}

func (m *memStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return []model.User{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) ListUserIDs(ctx context.Context) ([]string, error) {
	users, _ := m.ListUsers(ctx, repository.ListOptions{})
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	delete(m.owns, id)
	for _, set := range m.members {
		delete(set, id)
	}
	return nil
}

// --- games ---

func (m *memStore) UpsertGame(_ context.Context, g *model.Game) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.games {
		if existing.AppID == g.AppID {
			g.ID = existing.ID
			existing.Name = g.Name
			return false, nil
		}
	}
	g.ID = m.id("game")
	stored := *g
	m.games[g.ID] = &stored
	return true, nil
}

func (m *memStore) GetGameByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, apperror.NotFound("game", id)
	}
	out := *g
	return &out, nil
}

func (m *memStore) GetGameByAppID(_ context.Context, appID int64) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.AppID == appID {
			out := *g
			return &out, nil
		}
	}
	return nil, apperror.NotFound("game", fmt.Sprint(appID))
}

func (m *memStore) ListGames(_ context.Context, search string, opts repository.ListOptions) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Game{}
	for _, g := range m.games {
		if strings.Contains(strings.ToLower(g.Name), strings.ToLower(search)) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) PopularGames(context.Context, int) ([]model.GameWithStats, error) {
	return []model.GameWithStats{}, nil
}

func (m *memStore) MostPlayedGames(context.Context, int) ([]model.GameWithStats, error) {
	return []model.GameWithStats{}, nil
}

// --- taxonomy ---
//
// Genres are keyed by name; categories are accepted and dropped.

func (m *memStore) SaveGameDetails(ctx context.Context, g *model.Game, genres, _ []string) (bool, error) {
	created, err := m.UpsertGame(ctx, g)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *g
	m.games[g.ID] = &stored
	m.genres[g.ID] = append([]string(nil), genres...)
	return created, nil
}

func (m *memStore) GameTaxonomy(_ context.Context, gameID string) ([]string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	genres := append([]string{}, m.genres[gameID]...)
	sort.Strings(genres)
	return genres, []string{}, nil
}

func (m *memStore) ListGenres(context.Context) ([]model.Genre, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, names := range m.genres {
		for _, n := range names {
			counts[n]++
		}
	}
	out := []model.Genre{}
	for n, c := range counts {
		out = append(out, model.Genre{ID: n, Name: n, GameCount: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GamesByGenre(_ context.Context, genreID string, _ repository.ListOptions) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Game{}
	for gameID, names := range m.genres {
		for _, n := range names {
			if n == genreID {
				out = append(out, *m.games[gameID])
			}
		}
	}
	if len(out) == 0 {
		return nil, apperror.NotFound("genre", genreID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) PlaytimeByGenre(_ context.Context, userID string) ([]model.GenrePlaytime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, apperror.NotFound("user", userID)
	}
	byGenre := map[string]*model.GenrePlaytime{}
	for gameID, o := range m.owns[userID] {
		for _, n := range m.genres[gameID] {
			gp := byGenre[n]
			if gp == nil {
				gp = &model.GenrePlaytime{Genre: n}
				byGenre[n] = gp
			}
			gp.TotalPlaytimeMinutes += o.PlaytimeTotal
			gp.GameCount++
		}
	}
	out := []model.GenrePlaytime{}
	for _, gp := range byGenre {
		gp.AvgPlaytimeMinutes = float64(gp.TotalPlaytimeMinutes) / float64(gp.GameCount)
		out = append(out, *gp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPlaytimeMinutes != out[j].TotalPlaytimeMinutes {
			return out[i].TotalPlaytimeMinutes > out[j].TotalPlaytimeMinutes
		}
		return out[i].Genre < out[j].Genre
	})
	return out, nil
}

// --- ownership ---

func (m *memStore) UpsertOwnership(_ context.Context, o *model.Ownership) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.PlaytimeTotal < 0 {
		return false, apperror.ValidationFailed("playtimeTotal", "negative")
	}
	lib := m.owns[o.UserID]
	if lib == nil {
		lib = map[string]*model.Ownership{}
		m.owns[o.UserID] = lib
	}
	existing, ok := lib[o.GameID]
	if !ok {
		stored := *o
		lib[o.GameID] = &stored
		return true, nil
	}
	existing.PlaytimeTotal = max(existing.PlaytimeTotal, o.PlaytimeTotal)
	existing.PlaytimeRecent = o.PlaytimeRecent
	existing.LastPlayed = o.LastPlayed
	return false, nil
}

func (m *memStore) ResetPlaytime(_ context.Context, userID, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owns[userID][gameID]
	if !ok {
		return apperror.NotFound("ownership", userID+"/"+gameID)
	}
	o.PlaytimeTotal = 0
	return nil
}

func (m *memStore) UserGames(ctx context.Context, userID string, _ repository.GameSort) ([]model.OwnedGame, error) {
	return m.GamesOwnedBy(ctx, userID)
}

// --- snapshot ---

func (m *memStore) ReadSnapshot(_ context.Context, fn func(repository.Snapshot) error) error {
	return fn(m)
}

func (m *memStore) GamesOwnedBy(_ context.Context, userID string) ([]model.OwnedGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, apperror.NotFound("user", userID)
	}
	out := []model.OwnedGame{}
	for gameID, o := range m.owns[userID] {
		g := m.games[gameID]
		out = append(out, model.OwnedGame{
			GameID: gameID, AppID: g.AppID, Name: g.Name,
			PlaytimeTotal: o.PlaytimeTotal, PlaytimeRecent: o.PlaytimeRecent,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlaytimeTotal > out[j].PlaytimeTotal })
	return out, nil
}

func (m *memStore) OwnersOf(_ context.Context, gameID string) ([]model.GameOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return nil, apperror.NotFound("game", gameID)
	}
	out := []model.GameOwner{}
	for userID, lib := range m.owns {
		if o, ok := lib[gameID]; ok {
			out = append(out, model.GameOwner{UserID: userID, PersonaName: m.users[userID].PersonaName, PlaytimeTotal: o.PlaytimeTotal})
		}
	}
	return out, nil
}

func (m *memStore) GroupMemberIDs(_ context.Context, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return nil, apperror.NotFound("group", groupID)
	}
	return m.memberIDsLocked(groupID), nil
}

func (m *memStore) AchievementCounts(_ context.Context, userID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, unlocked := 0, 0
	for _, ua := range m.unlocks {
		if ua.UserID != userID {
			continue
		}
		total++
		if ua.Achieved {
			unlocked++
		}
	}
	return total, unlocked, nil
}

// --- groups ---

func (m *memStore) CreateGroup(_ context.Context, g *model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = m.id("group")
	stored := *g
	m.groups[g.ID] = &stored
	m.members[g.ID] = map[string]bool{}
	return nil
}

func (m *memStore) GetGroup(_ context.Context, id string) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, apperror.NotFound("group", id)
	}
	out := *g
	out.MemberCount = len(m.members[id])
	return &out, nil
}

func (m *memStore) ListGroups(context.Context, repository.ListOptions) ([]model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Group{}
	for id, g := range m.groups {
		c := *g
		c.MemberCount = len(m.members[id])
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) UpdateGroup(_ context.Context, g *model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[g.ID]; !ok {
		return apperror.NotFound("group", g.ID)
	}
	stored := *g
	m.groups[g.ID] = &stored
	return nil
}

func (m *memStore) DeleteGroup(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return apperror.NotFound("group", id)
	}
	delete(m.groups, id)
	delete(m.members, id)
	return nil
}

func (m *memStore) GroupMembers(_ context.Context, groupID string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return nil, apperror.NotFound("group", groupID)
	}
	out := []model.User{}
	for _, id := range m.memberIDsLocked(groupID) {
		out = append(out, *m.users[id])
	}
	return out, nil
}

func (m *memStore) AddMembers(_ context.Context, groupID string, userIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return nil, apperror.NotFound("group", groupID)
	}
	for _, id := range userIDs {
		if _, ok := m.users[id]; !ok {
			return nil, apperror.NotFound("user", id)
		}
	}
	for _, id := range userIDs {
		m.members[groupID][id] = true
	}
	return m.memberIDsLocked(groupID), nil
}

func (m *memStore) RemoveMember(_ context.Context, groupID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return nil, apperror.NotFound("group", groupID)
	}
	delete(m.members[groupID], userID)
	return m.memberIDsLocked(groupID), nil
}

func (m *memStore) memberIDsLocked(groupID string) []string {
	ids := []string{}
	for id := range m.members[groupID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- achievements ---

func (m *memStore) UpsertAchievement(_ context.Context, a *model.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.GameID + "/" + a.APIName
	if existing, ok := m.achievements[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = m.id("ach")
	}
	stored := *a
	m.achievements[key] = &stored
	return nil
}

func (m *memStore) UpsertUserAchievement(_ context.Context, ua *model.UserAchievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *ua
	m.unlocks[ua.UserID+"/"+ua.AchievementID] = &stored
	return nil
}

// --- backlog ---

func (m *memStore) ListBacklog(_ context.Context, userID string, status model.BacklogStatus) ([]model.BacklogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.BacklogEntry{}
	for _, e := range m.backlog {
		if e.UserID == userID && (status == "" || e.Status == status) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) GetBacklogEntry(_ context.Context, userID, id string) (*model.BacklogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.backlog[id]
	if !ok || e.UserID != userID {
		return nil, apperror.NotFound("backlog entry", id)
	}
	out := *e
	return &out, nil
}

func (m *memStore) CreateBacklogEntry(_ context.Context, e *model.BacklogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.backlog {
		if existing.UserID == e.UserID && existing.GameID == e.GameID {
			return apperror.Conflict("backlog entry", e.UserID+"/"+e.GameID)
		}
	}
	e.ID = m.id("backlog")
	stored := *e
	m.backlog[e.ID] = &stored
	return nil
}

func (m *memStore) UpdateBacklogEntry(_ context.Context, e *model.BacklogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backlog[e.ID]; !ok {
		return apperror.NotFound("backlog entry", e.ID)
	}
	stored := *e
	m.backlog[e.ID] = &stored
	return nil
}

func (m *memStore) DeleteBacklogEntry(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.backlog[id]
	if !ok || e.UserID != userID {
		return apperror.NotFound("backlog entry", id)
	}
	delete(m.backlog, id)
	return nil
}

func (m *memStore) BacklogCounts(_ context.Context, userID string) (map[model.BacklogStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.BacklogStatus]int{}
	for _, e := range m.backlog {
		if e.UserID == userID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

// --- sync history & stats ---

func (m *memStore) RecordSync(_ context.Context, rec *model.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.id("sync")
	m.history = append(m.history, *rec)
	return nil
}

func (m *memStore) ListSyncHistory(_ context.Context, userID string, limit int) ([]model.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.SyncRecord{}
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].UserID == userID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memStore) GlobalStats(context.Context) (*model.GlobalStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.GlobalStats{TotalUsers: len(m.users), TotalGroups: len(m.groups), TotalGames: len(m.games)}, nil
}

// --- fixtures ---

func (m *memStore) addUser(t *testing.T, steamID, name string) *model.User {
	t.Helper()
	u := &model.User{SteamID: steamID, PersonaName: name}
	if _, err := m.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	return u
}

func (m *memStore) addGame(t *testing.T, appID int64, name string) *model.Game {
	t.Helper()
	g := &model.Game{AppID: appID, Name: name}
	if _, err := m.UpsertGame(context.Background(), g); err != nil {
		t.Fatalf("UpsertGame() error = %v", err)
	}
	return g
}

func (m *memStore) own(t *testing.T, u *model.User, g *model.Game, minutes int64) {
	t.Helper()
	if _, err := m.UpsertOwnership(context.Background(), &model.Ownership{UserID: u.ID, GameID: g.ID, PlaytimeTotal: minutes}); err != nil {
		t.Fatalf("UpsertOwnership() error = %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(store *memStore) *aggregate.Engine {
	return aggregate.NewEngine(store)
}

// =========================================================================
// MOCK STEAM API
// =========================================================================

type mockSteam struct {
	mu       sync.Mutex
	disabled bool
	players  map[string]*steam.Player
	libs     map[string][]steam.OwnedGame
	schemas  map[int64][]steam.AchievementSchema
	unlocks  map[string][]steam.PlayerAchievement // steamID/appID
	failFor  map[string]error                     // steamID → error from GetOwnedGames
	apps     map[int64]*steam.AppDetails
	calls    int
}

func newMockSteam() *mockSteam {
	return &mockSteam{
		players: map[string]*steam.Player{},
		libs:    map[string][]steam.OwnedGame{},
		schemas: map[int64][]steam.AchievementSchema{},
		unlocks: map[string][]steam.PlayerAchievement{},
		failFor: map[string]error{},
		apps:    map[int64]*steam.AppDetails{},
	}
}

func (s *mockSteam) Enabled() bool { return !s.disabled }

func (s *mockSteam) GetPlayerSummary(_ context.Context, steamID string) (*steam.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.players[steamID], nil
}

func (s *mockSteam) GetOwnedGames(_ context.Context, steamID string) ([]steam.OwnedGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failFor[steamID]; err != nil {
		return nil, err
	}
	return s.libs[steamID], nil
}

func (s *mockSteam) GetSchemaForGame(_ context.Context, appID int64) ([]steam.AchievementSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemas[appID], nil
}

func (s *mockSteam) GetPlayerAchievements(_ context.Context, steamID string, appID int64) ([]steam.PlayerAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	got, ok := s.unlocks[fmt.Sprintf("%s/%d", steamID, appID)]
	if !ok {
		return nil, steam.ErrNoStats
	}
	return got, nil
}

func (s *mockSteam) GetGlobalAchievementPercentages(context.Context, int64) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (s *mockSteam) GetAppDetails(_ context.Context, appID int64) (*steam.AppDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.apps[appID], nil
}
