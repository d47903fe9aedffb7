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

var _ repository.GroupRepository = (*DB)(nil)

const groupSelect = `SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
	(SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id) AS member_count
	FROM user_groups g`

func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	group.ID = xid.New().String()
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	group.MemberCount = 0

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO user_groups (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		group.ID,
		group.Name,
		group.Description,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating group: %w", err)
	}
	return nil
}

func (db *DB) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g, err := scanGroup(db.q.QueryRowContext(ctx, groupSelect+` WHERE g.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("group", id)
		}
		return nil, fmt.Errorf("sqlite: getting group %s: %w", id, err)
	}
	return g, nil
}

func (db *DB) ListGroups(ctx context.Context, opts repository.ListOptions) ([]model.Group, error) {
	limit, offset := clampList(opts)

	rows, err := db.q.QueryContext(ctx,
		groupSelect+` ORDER BY g.created_at DESC, g.id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.Group, 0, limit)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning group row: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating groups: %w", err)
	}
	return groups, nil
}

func (db *DB) UpdateGroup(ctx context.Context, group *model.Group) error {
	group.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE user_groups SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		group.Name,
		group.Description,
		group.UpdatedAt,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating group %s: %w", group.ID, err)
	}
	return requireAffected(result, "group", group.ID)
}

// DeleteGroup removes the group and its membership rows in one transaction.
// Users and their ownership facts are untouched.
func (db *DB) DeleteGroup(ctx context.Context, id string) error {
	defer metrics.ObserveDB(ctx, "delete_group")()

	return db.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting members of group %s: %w", id, err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM user_groups WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting group %s: %w", id, err)
		}
		return requireAffected(result, "group", id)
	})
}

// GroupMembers returns the member profiles ordered by persona name.
func (db *DB) GroupMembers(ctx context.Context, groupID string) ([]model.User, error) {
	if err := requireGroup(ctx, db.q, groupID); err != nil {
		return nil, err
	}

	rows, err := db.q.QueryContext(ctx,
		`SELECT u.id, u.steam_id, u.persona_name, u.profile_url, u.avatar_url, u.country_code,
		        u.created_at, u.updated_at
		 FROM group_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = ?
		 ORDER BY u.persona_name COLLATE NOCASE, u.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of group %s: %w", groupID, err)
	}
	defer rows.Close()

	members := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}

// GroupMemberIDs returns the member ids in ascending order.
func (db *DB) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	if err := requireGroup(ctx, db.q, groupID); err != nil {
		return nil, err
	}
	return memberIDs(ctx, db.q, groupID)
}

// AddMembers inserts every user into the group, all or nothing.
//
// The transaction opens with a write (touching updated_at) so it holds the
// write lock before reading. Concurrent readers in their own snapshot see
// either the old member set or the complete new one.
func (db *DB) AddMembers(ctx context.Context, groupID string, userIDs []string) ([]string, error) {
	defer metrics.ObserveDB(ctx, "add_members")()

	var members []string
	err := db.withTx(ctx, func(q querier) error {
		if err := touchGroup(ctx, q, groupID); err != nil {
			return err
		}
		for _, userID := range userIDs {
			ok, err := exists(ctx, q, `SELECT 1 FROM users WHERE id = ?`, userID)
			if err != nil {
				return fmt.Errorf("sqlite: checking user %s: %w", userID, err)
			}
			if !ok {
				return apperror.NotFound("user", userID)
			}
			if _, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO group_members (group_id, user_id, added_at) VALUES (?, ?, ?)`,
				groupID, userID, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("sqlite: adding user %s to group %s: %w", userID, groupID, err)
			}
		}
		var err error
		members, err = memberIDs(ctx, q, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveMember deletes one membership row. Removing a non-member is a no-op.
func (db *DB) RemoveMember(ctx context.Context, groupID, userID string) ([]string, error) {
	defer metrics.ObserveDB(ctx, "remove_member")()

	var members []string
	err := db.withTx(ctx, func(q querier) error {
		if err := touchGroup(ctx, q, groupID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
		); err != nil {
			return fmt.Errorf("sqlite: removing user %s from group %s: %w", userID, groupID, err)
		}
		var err error
		members, err = memberIDs(ctx, q, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func touchGroup(ctx context.Context, q querier, groupID string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE user_groups SET updated_at = ? WHERE id = ?`, time.Now().UTC(), groupID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: locking group %s: %w", groupID, err)
	}
	return requireAffected(result, "group", groupID)
}

func requireGroup(ctx context.Context, q querier, groupID string) error {
	ok, err := exists(ctx, q, `SELECT 1 FROM user_groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("sqlite: checking group %s: %w", groupID, err)
	}
	if !ok {
		return apperror.NotFound("group", groupID)
	}
	return nil
}

func memberIDs(ctx context.Context, q querier, groupID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing member ids of group %s: %w", groupID, err)
	}
	return collectStrings(rows)
}

func scanGroup(s rowScanner) (*model.Group, error) {
	var g model.Group
	if err := s.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.MemberCount,
	); err != nil {
		return nil, err
	}
	return &g, nil
}
