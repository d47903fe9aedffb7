package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

var _ repository.BacklogRepository = (*DB)(nil)

const backlogSelect = `SELECT b.id, b.user_id, b.game_id, g.name, b.status, b.priority, b.notes,
	b.started_at, b.completed_at, b.created_at, b.updated_at
	FROM user_backlog b
	JOIN games g ON g.id = b.game_id`

// ListBacklog returns a user's backlog, highest priority first. An empty
// status lists every entry.
func (db *DB) ListBacklog(ctx context.Context, userID string, status model.BacklogStatus) ([]model.BacklogEntry, error) {
	query := backlogSelect + ` WHERE b.user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY b.priority DESC, b.created_at, b.id`

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing backlog of user %s: %w", userID, err)
	}
	defer rows.Close()

	entries := []model.BacklogEntry{}
	for rows.Next() {
		e, err := scanBacklog(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning backlog row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating backlog: %w", err)
	}
	return entries, nil
}

func (db *DB) GetBacklogEntry(ctx context.Context, userID, id string) (*model.BacklogEntry, error) {
	e, err := scanBacklog(db.q.QueryRowContext(ctx,
		backlogSelect+` WHERE b.user_id = ? AND b.id = ?`, userID, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("backlog entry", id)
		}
		return nil, fmt.Errorf("sqlite: getting backlog entry %s: %w", id, err)
	}
	return e, nil
}

// CreateBacklogEntry fails with apperror.ErrConflict when the user already
// has an entry for the game.
func (db *DB) CreateBacklogEntry(ctx context.Context, e *model.BacklogEntry) error {
	e.ID = xid.New().String()
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO user_backlog (id, user_id, game_id, status, priority, notes, started_at, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.GameID,
		string(e.Status),
		e.Priority,
		e.Notes,
		nullTime(e.StartedAt),
		nullTime(e.CompletedAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("backlog entry", e.UserID+"/"+e.GameID)
		}
		return fmt.Errorf("sqlite: creating backlog entry: %w", err)
	}
	return nil
}

func (db *DB) UpdateBacklogEntry(ctx context.Context, e *model.BacklogEntry) error {
	e.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE user_backlog
		 SET status = ?, priority = ?, notes = ?, started_at = ?, completed_at = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		string(e.Status),
		e.Priority,
		e.Notes,
		nullTime(e.StartedAt),
		nullTime(e.CompletedAt),
		e.UpdatedAt,
		e.UserID,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating backlog entry %s: %w", e.ID, err)
	}
	return requireAffected(result, "backlog entry", e.ID)
}

func (db *DB) DeleteBacklogEntry(ctx context.Context, userID, id string) error {
	result, err := db.q.ExecContext(ctx,
		`DELETE FROM user_backlog WHERE user_id = ? AND id = ?`, userID, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting backlog entry %s: %w", id, err)
	}
	return requireAffected(result, "backlog entry", id)
}

// BacklogCounts returns the number of entries per status for a user.
func (db *DB) BacklogCounts(ctx context.Context, userID string) (map[model.BacklogStatus]int, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM user_backlog WHERE user_id = ? GROUP BY status`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting backlog of user %s: %w", userID, err)
	}
	defer rows.Close()

	counts := map[model.BacklogStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning backlog count: %w", err)
		}
		counts[model.BacklogStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating backlog counts: %w", err)
	}
	return counts, nil
}

func scanBacklog(s rowScanner) (*model.BacklogEntry, error) {
	var e model.BacklogEntry
	var status string
	var startedAt, completedAt sql.NullTime
	if err := s.Scan(
		&e.ID,
		&e.UserID,
		&e.GameID,
		&e.GameName,
		&status,
		&e.Priority,
		&e.Notes,
		&startedAt,
		&completedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = model.BacklogStatus(status)
	e.StartedAt = timePtr(startedAt)
	e.CompletedAt = timePtr(completedAt)
	return &e, nil
}

// isUniqueViolation matches SQLite's constraint message. modernc reports it
// as "constraint failed: UNIQUE constraint failed: ..." with code 2067.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
