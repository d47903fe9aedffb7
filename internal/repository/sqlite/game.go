package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var _ repository.GameRepository = (*DB)(nil)

const gameColumns = `id, app_id, name, icon_url, header_image, developer, publisher, metacritic_score, created_at, updated_at`

// UpsertGame inserts or updates a catalog entry keyed by AppID in a single
// statement, so concurrent syncs that discover the same game converge on one
// row. Empty metadata in the incoming value keeps the stored value.
func (db *DB) UpsertGame(ctx context.Context, game *model.Game) (bool, error) {
	defer metrics.ObserveDB(ctx, "upsert_game")()

	newID := xid.New().String()
	now := time.Now().UTC()

	err := db.q.QueryRowContext(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (app_id) DO UPDATE SET
			name             = COALESCE(NULLIF(excluded.name, ''), games.name),
			icon_url         = COALESCE(NULLIF(excluded.icon_url, ''), games.icon_url),
			header_image     = COALESCE(NULLIF(excluded.header_image, ''), games.header_image),
			developer        = COALESCE(NULLIF(excluded.developer, ''), games.developer),
			publisher        = COALESCE(NULLIF(excluded.publisher, ''), games.publisher),
			metacritic_score = COALESCE(NULLIF(excluded.metacritic_score, 0), games.metacritic_score),
			updated_at       = excluded.updated_at
		 RETURNING id`,
		newID,
		game.AppID,
		game.Name,
		game.IconURL,
		game.HeaderImage,
		game.Developer,
		game.Publisher,
		game.MetacriticScore,
		now,
		now,
	).Scan(&game.ID)
	if err != nil {
		return false, fmt.Errorf("sqlite: upserting game (appID=%d): %w", game.AppID, err)
	}
	game.UpdatedAt = now

	if game.ID == newID {
		game.CreatedAt = now
		return true, nil
	}
	if err := db.q.QueryRowContext(ctx,
		`SELECT created_at FROM games WHERE id = ?`, game.ID,
	).Scan(&game.CreatedAt); err != nil {
		return false, fmt.Errorf("sqlite: reading game %s: %w", game.ID, err)
	}
	return false, nil
}

func (db *DB) GetGameByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(db.q.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("game", id)
		}
		return nil, fmt.Errorf("sqlite: getting game %s: %w", id, err)
	}
	return g, nil
}

func (db *DB) GetGameByAppID(ctx context.Context, appID int64) (*model.Game, error) {
	g, err := scanGame(db.q.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE app_id = ?`, appID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("game", strconv.FormatInt(appID, 10))
		}
		return nil, fmt.Errorf("sqlite: getting game by app_id %d: %w", appID, err)
	}
	return g, nil
}

// ListGames returns games ordered by name, optionally filtered by a
// case-insensitive substring of the name.
func (db *DB) ListGames(ctx context.Context, search string, opts repository.ListOptions) ([]model.Game, error) {
	limit, offset := clampList(opts)

	query := `SELECT ` + gameColumns + ` FROM games`
	args := []any{}
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += ` ORDER BY name COLLATE NOCASE, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing games: %w", err)
	}
	defer rows.Close()

	games := make([]model.Game, 0, limit)
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

// PopularGames ranks games by number of owners.
func (db *DB) PopularGames(ctx context.Context, limit int) ([]model.GameWithStats, error) {
	return db.rankedGames(ctx, "owner_count DESC, total_playtime DESC", limit)
}

// MostPlayedGames ranks games by combined playtime across all owners.
func (db *DB) MostPlayedGames(ctx context.Context, limit int) ([]model.GameWithStats, error) {
	return db.rankedGames(ctx, "total_playtime DESC, owner_count DESC", limit)
}

func (db *DB) rankedGames(ctx context.Context, orderBy string, limit int) ([]model.GameWithStats, error) {
	defer metrics.ObserveDB(ctx, "ranked_games")()

	limit, _ = clampList(repository.ListOptions{Limit: limit})

	rows, err := db.q.QueryContext(ctx,
		`SELECT g.id, g.app_id, g.name, g.icon_url, g.header_image, g.developer, g.publisher,
		        g.metacritic_score, g.created_at, g.updated_at,
		        COUNT(ug.user_id) AS owner_count,
		        COALESCE(SUM(ug.playtime_total), 0) AS total_playtime
		 FROM games g
		 JOIN user_games ug ON ug.game_id = g.id
		 GROUP BY g.id
		 ORDER BY `+orderBy+`, g.name
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ranking games: %w", err)
	}
	defer rows.Close()

	out := make([]model.GameWithStats, 0, limit)
	for rows.Next() {
		var gs model.GameWithStats
		if err := rows.Scan(
			&gs.ID, &gs.AppID, &gs.Name, &gs.IconURL, &gs.HeaderImage, &gs.Developer, &gs.Publisher,
			&gs.MetacriticScore, &gs.CreatedAt, &gs.UpdatedAt,
			&gs.OwnerCount, &gs.TotalPlaytime,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ranked game: %w", err)
		}
		out = append(out, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ranked games: %w", err)
	}
	return out, nil
}

func scanGame(s rowScanner) (*model.Game, error) {
	var g model.Game
	if err := s.Scan(
		&g.ID,
		&g.AppID,
		&g.Name,
		&g.IconURL,
		&g.HeaderImage,
		&g.Developer,
		&g.Publisher,
		&g.MetacriticScore,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
