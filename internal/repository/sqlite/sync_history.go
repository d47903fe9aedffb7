package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var (
	_ repository.SyncHistoryRepository = (*DB)(nil)
	_ repository.StatsRepository       = (*DB)(nil)
)

func (db *DB) RecordSync(ctx context.Context, rec *model.SyncRecord) error {
	rec.ID = xid.New().String()
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO sync_history (id, user_id, sync_type, status, items_synced, error_message, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		string(rec.Type),
		string(rec.Status),
		rec.ItemsSynced,
		rec.ErrorMessage,
		rec.StartedAt.UTC(),
		rec.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording sync for user %s: %w", rec.UserID, err)
	}
	return nil
}

// ListSyncHistory returns the most recent sync runs of a user.
func (db *DB) ListSyncHistory(ctx context.Context, userID string, limit int) ([]model.SyncRecord, error) {
	limit, _ = clampList(repository.ListOptions{Limit: limit})

	rows, err := db.q.QueryContext(ctx,
		`SELECT id, user_id, sync_type, status, items_synced, error_message, started_at, completed_at
		 FROM sync_history
		 WHERE user_id = ?
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sync history of user %s: %w", userID, err)
	}
	defer rows.Close()

	records := []model.SyncRecord{}
	for rows.Next() {
		var r model.SyncRecord
		var syncType, status string
		if err := rows.Scan(
			&r.ID, &r.UserID, &syncType, &status, &r.ItemsSynced, &r.ErrorMessage,
			&r.StartedAt, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning sync record: %w", err)
		}
		r.Type = model.SyncType(syncType)
		r.Status = model.SyncStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating sync history: %w", err)
	}
	return records, nil
}

// GlobalStats computes dashboard totals in a single statement.
func (db *DB) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	var s model.GlobalStats
	var playtimeMinutes int64
	err := db.q.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM user_groups),
			(SELECT COUNT(*) FROM games),
			(SELECT COALESCE(SUM(playtime_total), 0) FROM user_games),
			(SELECT COUNT(*) FROM user_achievements WHERE achieved = 1)`,
	).Scan(&s.TotalUsers, &s.TotalGroups, &s.TotalGames, &playtimeMinutes, &s.AchievementsUnlocked)
	if err != nil {
		return nil, fmt.Errorf("sqlite: computing global stats: %w", err)
	}
	s.TotalPlaytimeHours = float64(playtimeMinutes) / 60
	return &s, nil
}
