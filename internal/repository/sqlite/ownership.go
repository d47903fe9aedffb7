package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var (
	_ repository.OwnershipRepository = (*DB)(nil)
	_ repository.Snapshot            = (*DB)(nil)
)

// UpsertOwnership records that a user owns a game.
//
// PLAYTIME IS MONOTONIC:
// playtime_total keeps MAX(stored, incoming). A resync that reports a lower
// total (Steam occasionally lags) never rolls playtime back; ResetPlaytime is
// the only way down. playtime_recent is a sliding two-week window and is
// always replaced.
func (db *DB) UpsertOwnership(ctx context.Context, o *model.Ownership) (bool, error) {
	defer metrics.ObserveDB(ctx, "upsert_ownership")()

	if o.PlaytimeTotal < 0 || o.PlaytimeRecent < 0 {
		return false, apperror.ValidationFailed("playtime", "playtime must be non-negative")
	}

	existed, err := exists(ctx, db.q,
		`SELECT 1 FROM user_games WHERE user_id = ? AND game_id = ?`, o.UserID, o.GameID)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ownership %s/%s: %w", o.UserID, o.GameID, err)
	}

	o.UpdatedAt = time.Now().UTC()
	_, err = db.q.ExecContext(ctx,
		`INSERT INTO user_games (user_id, game_id, playtime_total, playtime_recent, last_played, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, game_id) DO UPDATE SET
			playtime_total  = MAX(user_games.playtime_total, excluded.playtime_total),
			playtime_recent = excluded.playtime_recent,
			last_played     = COALESCE(excluded.last_played, user_games.last_played),
			updated_at      = excluded.updated_at`,
		o.UserID,
		o.GameID,
		o.PlaytimeTotal,
		o.PlaytimeRecent,
		nullTime(o.LastPlayed),
		o.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: upserting ownership %s/%s: %w", o.UserID, o.GameID, err)
	}
	return !existed, nil
}

// ResetPlaytime zeroes both playtime counters of one ownership fact.
func (db *DB) ResetPlaytime(ctx context.Context, userID, gameID string) error {
	result, err := db.q.ExecContext(ctx,
		`UPDATE user_games SET playtime_total = 0, playtime_recent = 0, updated_at = ?
		 WHERE user_id = ? AND game_id = ?`,
		time.Now().UTC(), userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: resetting playtime %s/%s: %w", userID, gameID, err)
	}
	return requireAffected(result, "ownership", userID+"/"+gameID)
}

// UserGames returns a user's library in the requested order.
func (db *DB) UserGames(ctx context.Context, userID string, sort repository.GameSort) ([]model.OwnedGame, error) {
	var orderBy string
	switch sort {
	case repository.SortByName:
		orderBy = "g.name COLLATE NOCASE, g.id"
	case repository.SortByRecent:
		orderBy = "ug.last_played IS NULL, ug.last_played DESC, g.name"
	default:
		orderBy = "ug.playtime_total DESC, g.name"
	}
	if err := db.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return db.ownedGames(ctx, userID, orderBy)
}

// GamesOwnedBy returns every ownership fact of a user. Unknown users are
// NotFound; a known user with an empty library gets an empty slice.
func (db *DB) GamesOwnedBy(ctx context.Context, userID string) ([]model.OwnedGame, error) {
	defer metrics.ObserveDB(ctx, "games_owned_by")()

	if err := db.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return db.ownedGames(ctx, userID, "g.id")
}

func (db *DB) ownedGames(ctx context.Context, userID, orderBy string) ([]model.OwnedGame, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT g.id, g.app_id, g.name, g.icon_url, ug.playtime_total, ug.playtime_recent, ug.last_played
		 FROM user_games ug
		 JOIN games g ON g.id = ug.game_id
		 WHERE ug.user_id = ?
		 ORDER BY `+orderBy,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing games of user %s: %w", userID, err)
	}
	defer rows.Close()

	games := []model.OwnedGame{}
	for rows.Next() {
		var og model.OwnedGame
		var lastPlayed sql.NullTime
		if err := rows.Scan(
			&og.GameID, &og.AppID, &og.Name, &og.IconURL,
			&og.PlaytimeTotal, &og.PlaytimeRecent, &lastPlayed,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning owned game: %w", err)
		}
		og.LastPlayed = timePtr(lastPlayed)
		games = append(games, og)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating owned games: %w", err)
	}
	return games, nil
}

// OwnersOf returns every owner of a game, highest playtime first.
func (db *DB) OwnersOf(ctx context.Context, gameID string) ([]model.GameOwner, error) {
	defer metrics.ObserveDB(ctx, "owners_of")()

	ok, err := exists(ctx, db.q, `SELECT 1 FROM games WHERE id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking game %s: %w", gameID, err)
	}
	if !ok {
		return nil, apperror.NotFound("game", gameID)
	}

	rows, err := db.q.QueryContext(ctx,
		`SELECT u.id, u.persona_name, u.avatar_url, ug.playtime_total
		 FROM user_games ug
		 JOIN users u ON u.id = ug.user_id
		 WHERE ug.game_id = ?
		 ORDER BY ug.playtime_total DESC, u.id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing owners of game %s: %w", gameID, err)
	}
	defer rows.Close()

	owners := []model.GameOwner{}
	for rows.Next() {
		var o model.GameOwner
		if err := rows.Scan(&o.UserID, &o.PersonaName, &o.AvatarURL, &o.PlaytimeTotal); err != nil {
			return nil, fmt.Errorf("sqlite: scanning game owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating game owners: %w", err)
	}
	return owners, nil
}

// AchievementCounts returns the tracked and unlocked achievement counts of a user.
func (db *DB) AchievementCounts(ctx context.Context, userID string) (int, int, error) {
	var total, unlocked int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(achieved), 0) FROM user_achievements WHERE user_id = ?`,
		userID,
	).Scan(&total, &unlocked)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: counting achievements of user %s: %w", userID, err)
	}
	return total, unlocked, nil
}

func (db *DB) requireUser(ctx context.Context, userID string) error {
	ok, err := exists(ctx, db.q, `SELECT 1 FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: checking user %s: %w", userID, err)
	}
	if !ok {
		return apperror.NotFound("user", userID)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
