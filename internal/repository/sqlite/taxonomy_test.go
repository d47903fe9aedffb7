package sqlite

import (
	"context"
	"slices"
	"testing"

	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

func saveDetails(t *testing.T, db *DB, g *model.Game, genres, categories []string) bool {
	t.Helper()
	created, err := db.SaveGameDetails(context.Background(), g, genres, categories)
	if err != nil {
		t.Fatalf("SaveGameDetails(%d) error = %v", g.AppID, err)
	}
	return created
}

func TestSaveGameDetails_ReplacesTags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	portal := &model.Game{AppID: 620, Name: "Portal 2", Developer: "Valve", MetacriticScore: 95}
	if !saveDetails(t, db, portal, []string{"Puzzle", "Action"}, []string{"Single-player", "Co-op"}) {
		t.Error("first SaveGameDetails() should report created")
	}

	genres, categories, err := db.GameTaxonomy(ctx, portal.ID)
	if err != nil {
		t.Fatalf("GameTaxonomy() error = %v", err)
	}
	if !slices.Equal(genres, []string{"Action", "Puzzle"}) {
		t.Errorf("genres = %v, want [Action Puzzle]", genres)
	}
	if !slices.Equal(categories, []string{"Co-op", "Single-player"}) {
		t.Errorf("categories = %v, want [Co-op Single-player]", categories)
	}

	again := &model.Game{AppID: 620, Name: "Portal 2"}
	if saveDetails(t, db, again, []string{"Puzzle", " "}, nil) {
		t.Error("repeat SaveGameDetails() should not report created")
	}
	if again.ID != portal.ID {
		t.Errorf("ID = %s, want %s", again.ID, portal.ID)
	}
	genres, categories, _ = db.GameTaxonomy(ctx, portal.ID)
	if !slices.Equal(genres, []string{"Puzzle"}) || len(categories) != 0 {
		t.Errorf("after resave = (%v, %v), want ([Puzzle], [])", genres, categories)
	}

	stored, err := db.GetGameByAppID(ctx, 620)
	if err != nil {
		t.Fatalf("GetGameByAppID() error = %v", err)
	}
	if stored.Developer != "Valve" || stored.MetacriticScore != 95 {
		t.Errorf("stored game = %+v, want developer and score kept", stored)
	}

	list, err := db.ListGenres(ctx)
	if err != nil {
		t.Fatalf("ListGenres() error = %v", err)
	}
	want := []model.Genre{{Name: "Action", GameCount: 0}, {Name: "Puzzle", GameCount: 1}}
	if len(list) != len(want) {
		t.Fatalf("ListGenres() = %+v, want %d genres", list, len(want))
	}
	for i := range want {
		if list[i].Name != want[i].Name || list[i].GameCount != want[i].GameCount || list[i].ID == "" {
			t.Errorf("ListGenres()[%d] = %+v, want %+v", i, list[i], want[i])
		}
	}
}

func TestSaveGameDetails_SharedGenreRow(t *testing.T) {
	db := newTestDB(t)
	saveDetails(t, db, &model.Game{AppID: 400, Name: "Portal"}, []string{"Puzzle"}, nil)
	saveDetails(t, db, &model.Game{AppID: 620, Name: "Portal 2"}, []string{"Puzzle"}, nil)

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM genres WHERE name = 'Puzzle'`).Scan(&n); err != nil {
		t.Fatalf("counting genres: %v", err)
	}
	if n != 1 {
		t.Errorf("genre rows named Puzzle = %d, want 1", n)
	}
}

func TestGamesByGenre(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	saveDetails(t, db, &model.Game{AppID: 620, Name: "Portal 2"}, []string{"Puzzle"}, nil)
	saveDetails(t, db, &model.Game{AppID: 400, Name: "Portal"}, []string{"Puzzle", "Action"}, nil)
	saveDetails(t, db, &model.Game{AppID: 570, Name: "Dota 2"}, []string{"Strategy"}, nil)

	genres, _ := db.ListGenres(ctx)
	var puzzle string
	for _, g := range genres {
		if g.Name == "Puzzle" {
			puzzle = g.ID
		}
	}

	games, err := db.GamesByGenre(ctx, puzzle, repository.ListOptions{})
	if err != nil {
		t.Fatalf("GamesByGenre() error = %v", err)
	}
	if len(games) != 2 || games[0].Name != "Portal" || games[1].Name != "Portal 2" {
		t.Errorf("GamesByGenre() = %+v, want Portal then Portal 2", games)
	}

	page, err := db.GamesByGenre(ctx, puzzle, repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].AppID != 620 {
		t.Errorf("GamesByGenre(page 2) = (%+v, %v), want [Portal 2]", page, err)
	}

	_, err = db.GamesByGenre(ctx, "ghost", repository.ListOptions{})
	assertNotFound(t, err)
}

func TestPlaytimeByGenre(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "1", "alice")

	portal := &model.Game{AppID: 400, Name: "Portal"}
	saveDetails(t, db, portal, []string{"Puzzle", "Action"}, nil)
	dota := &model.Game{AppID: 570, Name: "Dota 2"}
	saveDetails(t, db, dota, []string{"Strategy"}, nil)
	untagged := createTestGame(t, db, 440, "Team Fortress 2")
	own(t, db, u, portal, 100)
	own(t, db, u, dota, 300)
	own(t, db, u, untagged, 1000)

	rows, err := db.PlaytimeByGenre(ctx, u.ID)
	if err != nil {
		t.Fatalf("PlaytimeByGenre() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("PlaytimeByGenre() = %+v, want 3 genres", rows)
	}
	if rows[0].Genre != "Strategy" || rows[0].TotalPlaytimeMinutes != 300 {
		t.Errorf("first = %+v, want Strategy with 300", rows[0])
	}
	if rows[1].Genre != "Action" || rows[2].Genre != "Puzzle" {
		t.Errorf("ties should sort by name: %+v", rows)
	}
	if rows[1].GameCount != 1 || rows[1].AvgPlaytimeMinutes != 100 {
		t.Errorf("Action = %+v, want one game averaging 100", rows[1])
	}

	_, err = db.PlaytimeByGenre(ctx, "ghost")
	assertNotFound(t, err)
}
