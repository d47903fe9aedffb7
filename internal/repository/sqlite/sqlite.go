// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// DRIVER:
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. It registers itself with database/sql under the
// driver name "sqlite" through the blank import below.
//
// CONNECTIONS AND PRAGMAS:
// sql.DB is a pool. A PRAGMA run with conn.Exec only affects whichever pooled
// connection happened to execute it, so per-connection settings (foreign
// keys, busy timeout) are passed in the DSN with modernc's _pragma parameter
// and applied to every connection the pool opens.
//
// ":memory:" databases are private to one connection, so the pool is capped
// at a single connection in that mode.
//
// TRANSACTIONS:
//   - Reads for the aggregation core run inside ReadSnapshot. In WAL mode a
//     read transaction sees one snapshot for its whole lifetime.
//   - Membership writes run inside withTx and always start with a write, so
//     the transaction takes the write lock up front instead of upgrading.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/steam-arena/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
//
// q is the pool itself, or a transaction when the DB value was handed to a
// ReadSnapshot callback.
type DB struct {
	conn *sql.DB
	q    querier
}

var _ repository.SnapshotReader = (*DB)(nil)

const memoryPath = ":memory:"

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/steam-arena.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// journal_mode is persistent in the file, so once is enough.
	if dbPath != memoryPath {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{conn: conn, q: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath == memoryPath {
		return memoryPath + "?" + params
	}
	if strings.Contains(dbPath, "?") {
		return "file:" + dbPath + "&" + params
	}
	return "file:" + dbPath + "?" + params
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// ReadSnapshot runs fn against a read transaction. Every query fn issues
// through the Snapshot observes the same committed state.
func (db *DB) ReadSnapshot(ctx context.Context, fn func(repository.Snapshot) error) error {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("sqlite: beginning snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only; rollback after commit is a no-op

	if err := fn(&DB{conn: db.conn, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: ending snapshot: %w", err)
	}
	return nil
}

// withTx runs fn in a write transaction, rolling back on any error.
func (db *DB) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. Every statement is idempotent.
//
// The groups table is named user_groups because GROUPS is a keyword in
// SQLite's window function grammar.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id           TEXT PRIMARY KEY,
				steam_id     TEXT NOT NULL UNIQUE,
				persona_name TEXT NOT NULL DEFAULT '',
				profile_url  TEXT NOT NULL DEFAULT '',
				avatar_url   TEXT NOT NULL DEFAULT '',
				country_code TEXT NOT NULL DEFAULT '',
				created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);`},
		{"games", `
			CREATE TABLE IF NOT EXISTS games (
				id               TEXT PRIMARY KEY,
				app_id           INTEGER NOT NULL UNIQUE,
				name             TEXT NOT NULL,
				icon_url         TEXT NOT NULL DEFAULT '',
				header_image     TEXT NOT NULL DEFAULT '',
				developer        TEXT NOT NULL DEFAULT '',
				publisher        TEXT NOT NULL DEFAULT '',
				metacritic_score INTEGER NOT NULL DEFAULT 0,
				created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_games_name ON games(name);`},
		{"user_games", `
			CREATE TABLE IF NOT EXISTS user_games (
				user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				game_id         TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				playtime_total  INTEGER NOT NULL DEFAULT 0 CHECK (playtime_total >= 0),
				playtime_recent INTEGER NOT NULL DEFAULT 0 CHECK (playtime_recent >= 0),
				last_played     DATETIME,
				updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, game_id)
			);
			CREATE INDEX IF NOT EXISTS idx_user_games_game_id ON user_games(game_id);`},
		{"user_groups", `
			CREATE TABLE IF NOT EXISTS user_groups (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"group_members", `
			CREATE TABLE IF NOT EXISTS group_members (
				group_id TEXT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
				user_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (group_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);`},
		{"achievements", `
			CREATE TABLE IF NOT EXISTS achievements (
				id             TEXT PRIMARY KEY,
				game_id        TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				api_name       TEXT NOT NULL,
				display_name   TEXT NOT NULL DEFAULT '',
				description    TEXT NOT NULL DEFAULT '',
				hidden         INTEGER NOT NULL DEFAULT 0,
				global_percent REAL,
				UNIQUE (game_id, api_name)
			);`},
		{"user_achievements", `
			CREATE TABLE IF NOT EXISTS user_achievements (
				user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				achievement_id TEXT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
				achieved       INTEGER NOT NULL DEFAULT 0,
				unlock_time    DATETIME,
				PRIMARY KEY (user_id, achievement_id)
			);`},
		{"user_backlog", `
			CREATE TABLE IF NOT EXISTS user_backlog (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				game_id      TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				status       TEXT NOT NULL DEFAULT 'backlog',
				priority     INTEGER NOT NULL DEFAULT 0,
				notes        TEXT NOT NULL DEFAULT '',
				started_at   DATETIME,
				completed_at DATETIME,
				created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, game_id)
			);`},
		{"sync_history", `
			CREATE TABLE IF NOT EXISTS sync_history (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				sync_type     TEXT NOT NULL,
				status        TEXT NOT NULL,
				items_synced  INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				started_at    DATETIME NOT NULL,
				completed_at  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sync_history_user ON sync_history(user_id, started_at);`},
		{"genres", `
			CREATE TABLE IF NOT EXISTS genres (
				id   TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			);
			CREATE TABLE IF NOT EXISTS game_genres (
				game_id  TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				genre_id TEXT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
				PRIMARY KEY (game_id, genre_id)
			);
			CREATE INDEX IF NOT EXISTS idx_game_genres_genre ON game_genres(genre_id);`},
		{"categories", `
			CREATE TABLE IF NOT EXISTS categories (
				id   TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			);
			CREATE TABLE IF NOT EXISTS game_categories (
				game_id     TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
				PRIMARY KEY (game_id, category_id)
			);`},
		{"playtime_history", `
			CREATE TABLE IF NOT EXISTS playtime_history (
				id             INTEGER PRIMARY KEY,
				user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				game_id        TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				playtime_total INTEGER NOT NULL,
				recorded_at    DATETIME NOT NULL,
				year           INTEGER NOT NULL,
				month          INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_playtime_history_user ON playtime_history(user_id, game_id, recorded_at);
			CREATE INDEX IF NOT EXISTS idx_playtime_history_recorded ON playtime_history(recorded_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// clampList applies the default and maximum page size.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// exists runs a SELECT 1 style query and reports whether it returned a row.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
