package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/metrics"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, steam_id, persona_name, profile_url, avatar_url, country_code, created_at, updated_at`

// UpsertUser inserts or updates a user keyed by SteamID.
//
// An existing user keeps their internal ID. Empty profile fields in the
// incoming value never overwrite stored ones, so a partial profile from Steam
// (private profiles omit most fields) does not blank out what we already know.
// The insert and the update are one statement; two registrations of the same
// SteamID racing each other both succeed and agree on the id.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) (bool, error) {
	defer metrics.ObserveDB(ctx, "upsert_user")()

	newID := xid.New().String()
	now := time.Now().UTC()

	err := db.q.QueryRowContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (steam_id) DO UPDATE SET
			persona_name = COALESCE(NULLIF(excluded.persona_name, ''), users.persona_name),
			profile_url  = COALESCE(NULLIF(excluded.profile_url, ''), users.profile_url),
			avatar_url   = COALESCE(NULLIF(excluded.avatar_url, ''), users.avatar_url),
			country_code = COALESCE(NULLIF(excluded.country_code, ''), users.country_code),
			updated_at   = excluded.updated_at
		 RETURNING id`,
		newID,
		user.SteamID,
		user.PersonaName,
		user.ProfileURL,
		user.AvatarURL,
		user.CountryCode,
		now,
		now,
	).Scan(&user.ID)
	if err != nil {
		return false, fmt.Errorf("sqlite: upserting user (steamID=%s): %w", user.SteamID, err)
	}
	user.UpdatedAt = now

	if user.ID == newID {
		user.CreatedAt = now
		return true, nil
	}
	if err := db.q.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE id = ?`, user.ID,
	).Scan(&user.CreatedAt); err != nil {
		return false, fmt.Errorf("sqlite: reading user %s: %w", user.ID, err)
	}
	return false, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserBySteamID retrieves a user by their Steam ID.
func (db *DB) GetUserBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	u, err := scanUser(db.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE steam_id = ?`, steamID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", steamID)
		}
		return nil, fmt.Errorf("sqlite: getting user by steam_id %s: %w", steamID, err)
	}
	return u, nil
}

// ListUsers returns users newest first.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampList(opts)

	rows, err := db.q.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// ListUserIDs returns every user id, used by the scheduled resync.
func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing user ids: %w", err)
	}
	return collectStrings(rows)
}

// DeleteUser removes a user. Ownership facts, achievements, memberships,
// backlog entries and sync history go with it through ON DELETE CASCADE.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireAffected(result, "user", id)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(
		&u.ID,
		&u.SteamID,
		&u.PersonaName,
		&u.ProfileURL,
		&u.AvatarURL,
		&u.CountryCode,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning id: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ids: %w", err)
	}
	return out, nil
}

func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
