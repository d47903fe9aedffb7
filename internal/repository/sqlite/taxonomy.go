package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var _ repository.TaxonomyRepository = (*DB)(nil)

// tagTable names a tag table and the join table linking it to games.
type tagTable struct {
	table  string
	link   string
	column string
}

var (
	genreTags    = tagTable{table: "genres", link: "game_genres", column: "genre_id"}
	categoryTags = tagTable{table: "categories", link: "game_categories", column: "category_id"}
)

// SaveGameDetails writes store metadata and the game's full tag lists. Tags
// the store no longer reports for the game are unlinked; the tag rows stay.
func (db *DB) SaveGameDetails(ctx context.Context, game *model.Game, genres, categories []string) (bool, error) {
	defer metrics.ObserveDB(ctx, "save_game_details")()

	var created bool
	err := db.withTx(ctx, func(q querier) error {
		tx := &DB{conn: db.conn, q: q}
		var err error
		if created, err = tx.UpsertGame(ctx, game); err != nil {
			return err
		}
		if err := replaceTags(ctx, q, genreTags, game.ID, genres); err != nil {
			return err
		}
		return replaceTags(ctx, q, categoryTags, game.ID, categories)
	})
	return created, err
}

func replaceTags(ctx context.Context, q querier, t tagTable, gameID string, names []string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM `+t.link+` WHERE game_id = ?`, gameID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing %s of game %s: %w", t.table, gameID, err)
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var tagID string
		// DO UPDATE rather than DO NOTHING so RETURNING yields the existing id.
		if err := q.QueryRowContext(ctx,
			`INSERT INTO `+t.table+` (id, name) VALUES (?, ?)
			 ON CONFLICT (name) DO UPDATE SET name = excluded.name
			 RETURNING id`,
			xid.New().String(), name,
		).Scan(&tagID); err != nil {
			return fmt.Errorf("sqlite: upserting %s %q: %w", t.table, name, err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+t.link+` (game_id, `+t.column+`) VALUES (?, ?)`,
			gameID, tagID,
		); err != nil {
			return fmt.Errorf("sqlite: linking %s %q to game %s: %w", t.table, name, gameID, err)
		}
	}
	return nil
}

// GameTaxonomy returns the genre and category names of a game, sorted.
func (db *DB) GameTaxonomy(ctx context.Context, gameID string) ([]string, []string, error) {
	genres, err := db.tagNames(ctx, genreTags, gameID)
	if err != nil {
		return nil, nil, err
	}
	categories, err := db.tagNames(ctx, categoryTags, gameID)
	if err != nil {
		return nil, nil, err
	}
	return genres, categories, nil
}

func (db *DB) tagNames(ctx context.Context, t tagTable, gameID string) ([]string, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT t.name FROM `+t.table+` t
		 JOIN `+t.link+` l ON l.`+t.column+` = t.id
		 WHERE l.game_id = ?
		 ORDER BY t.name`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s of game %s: %w", t.table, gameID, err)
	}
	return collectStrings(rows)
}

// ListGenres returns every genre by name with its game count.
func (db *DB) ListGenres(ctx context.Context) ([]model.Genre, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT g.id, g.name, COUNT(gg.game_id)
		 FROM genres g
		 LEFT JOIN game_genres gg ON gg.genre_id = g.id
		 GROUP BY g.id
		 ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing genres: %w", err)
	}
	defer rows.Close()

	genres := []model.Genre{}
	for rows.Next() {
		var g model.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.GameCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating genres: %w", err)
	}
	return genres, nil
}

func (db *DB) GamesByGenre(ctx context.Context, genreID string, opts repository.ListOptions) ([]model.Game, error) {
	ok, err := exists(ctx, db.q, `SELECT 1 FROM genres WHERE id = ?`, genreID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking genre %s: %w", genreID, err)
	}
	if !ok {
		return nil, apperror.NotFound("genre", genreID)
	}

	limit, offset := clampList(opts)
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE id IN (SELECT game_id FROM game_genres WHERE genre_id = ?)
		 ORDER BY name COLLATE NOCASE, id
		 LIMIT ? OFFSET ?`,
		genreID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing games of genre %s: %w", genreID, err)
	}
	defer rows.Close()

	games := []model.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning game row: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating games: %w", err)
	}
	return games, nil
}

func (db *DB) PlaytimeByGenre(ctx context.Context, userID string) ([]model.GenrePlaytime, error) {
	defer metrics.ObserveDB(ctx, "playtime_by_genre")()

	if err := db.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := db.q.QueryContext(ctx,
		`SELECT ge.name, SUM(ug.playtime_total), COUNT(*), AVG(ug.playtime_total)
		 FROM user_games ug
		 JOIN game_genres gg ON gg.game_id = ug.game_id
		 JOIN genres ge ON ge.id = gg.genre_id
		 WHERE ug.user_id = ?
		 GROUP BY ge.id
		 ORDER BY 2 DESC, ge.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: playtime by genre of user %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.GenrePlaytime{}
	for rows.Next() {
		var gp model.GenrePlaytime
		if err := rows.Scan(&gp.Genre, &gp.TotalPlaytimeMinutes, &gp.GameCount, &gp.AvgPlaytimeMinutes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning genre playtime: %w", err)
		}
		out = append(out, gp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating genre playtime: %w", err)
	}
	return out, nil
}
