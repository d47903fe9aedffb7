package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var _ repository.AchievementRepository = (*DB)(nil)

// UpsertAchievement stores a definition keyed by (game, api name) and fills
// in a.ID with the stored id.
func (db *DB) UpsertAchievement(ctx context.Context, a *model.Achievement) error {
	var globalPercent sql.NullFloat64
	if a.GlobalPercent != nil {
		globalPercent = sql.NullFloat64{Float64: *a.GlobalPercent, Valid: true}
	}

	err := db.q.QueryRowContext(ctx,
		`INSERT INTO achievements (id, game_id, api_name, display_name, description, hidden, global_percent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (game_id, api_name) DO UPDATE SET
			display_name   = excluded.display_name,
			description    = excluded.description,
			hidden         = excluded.hidden,
			global_percent = COALESCE(excluded.global_percent, achievements.global_percent)
		 RETURNING id`,
		xid.New().String(),
		a.GameID,
		a.APIName,
		a.DisplayName,
		a.Description,
		a.Hidden,
		globalPercent,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("sqlite: upserting achievement %s/%s: %w", a.GameID, a.APIName, err)
	}
	return nil
}

// UpsertUserAchievement records a user's unlock state for one achievement.
func (db *DB) UpsertUserAchievement(ctx context.Context, ua *model.UserAchievement) error {
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO user_achievements (user_id, achievement_id, achieved, unlock_time)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			achieved    = excluded.achieved,
			unlock_time = excluded.unlock_time`,
		ua.UserID,
		ua.AchievementID,
		ua.Achieved,
		nullTime(ua.UnlockTime),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user achievement %s/%s: %w", ua.UserID, ua.AchievementID, err)
	}
	return nil
}
