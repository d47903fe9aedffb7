package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var _ repository.PlaytimeHistoryRepository = (*DB)(nil)

// RecordSnapshot copies user_games into playtime_history with one statement,
// so a snapshot never sees half of a concurrent library sync.
func (db *DB) RecordSnapshot(ctx context.Context, at time.Time) (int, error) {
	defer metrics.ObserveDB(ctx, "record_snapshot")()

	at = at.UTC()
	result, err := db.q.ExecContext(ctx,
		`INSERT INTO playtime_history (user_id, game_id, playtime_total, recorded_at, year, month)
		 SELECT user_id, game_id, playtime_total, ?, ?, ?
		 FROM user_games`,
		at, at.Year(), int(at.Month()),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: recording playtime snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

// SnapshotDays counts snapshot rows per UTC day, newest day first.
// recorded_at is always written in UTC, so its first ten characters are the day.
func (db *DB) SnapshotDays(ctx context.Context, limit int) ([]model.SnapshotDay, error) {
	limit, _ = clampList(repository.ListOptions{Limit: limit})

	rows, err := db.q.QueryContext(ctx,
		`SELECT substr(recorded_at, 1, 10) AS day, COUNT(*)
		 FROM playtime_history
		 GROUP BY day
		 ORDER BY day DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snapshot days: %w", err)
	}
	defer rows.Close()

	days := []model.SnapshotDay{}
	for rows.Next() {
		var d model.SnapshotDay
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snapshot day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snapshot days: %w", err)
	}
	return days, nil
}

func (db *DB) PlaytimeHistory(ctx context.Context, userID string) ([]model.PlaytimePoint, error) {
	defer metrics.ObserveDB(ctx, "playtime_history")()

	if err := db.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := db.q.QueryContext(ctx,
		`SELECT g.id, g.app_id, g.name, ph.playtime_total, ph.recorded_at
		 FROM playtime_history ph
		 JOIN games g ON g.id = ph.game_id
		 WHERE ph.user_id = ?
		 ORDER BY ph.recorded_at, ph.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading playtime history of user %s: %w", userID, err)
	}
	defer rows.Close()

	points := []model.PlaytimePoint{}
	for rows.Next() {
		var p model.PlaytimePoint
		if err := rows.Scan(&p.GameID, &p.AppID, &p.Name, &p.PlaytimeTotal, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning playtime point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating playtime history: %w", err)
	}
	return points, nil
}

func (db *DB) UnlockTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT unlock_time FROM user_achievements
		 WHERE user_id = ? AND achieved = 1 AND unlock_time IS NOT NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading unlock times of user %s: %w", userID, err)
	}
	defer rows.Close()

	times := []time.Time{}
	for rows.Next() {
		var t sql.NullTime
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning unlock time: %w", err)
		}
		if t.Valid {
			times = append(times, t.Time)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating unlock times: %w", err)
	}
	return times, nil
}
