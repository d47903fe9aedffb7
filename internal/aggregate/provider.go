package aggregate

import (
	"context"
	"strings"

	"github.com/sakif/steam-arena/internal/repository"
)

// MemberSetProvider supplies the user ids an aggregation runs over. It is
// resolved inside the same snapshot as the ownership facts, so a persisted
// group and its members' libraries are always read together.
type MemberSetProvider interface {
	Members(ctx context.Context, snap repository.Snapshot) ([]string, error)
}

// GroupMembers resolves to the current members of a persisted group.
// An unknown group fails with apperror.ErrNotFound.
type GroupMembers string

func (g GroupMembers) Members(ctx context.Context, snap repository.Snapshot) ([]string, error) {
	return snap.GroupMemberIDs(ctx, string(g))
}

// UserSet is an ad-hoc set of user ids supplied by the caller. Blank and
// repeated ids are dropped; the first occurrence fixes the order.
type UserSet []string

func (u UserSet) Members(context.Context, repository.Snapshot) ([]string, error) {
	return u.Distinct(), nil
}

// Distinct returns the trimmed, de-duplicated ids in first-seen order.
func (u UserSet) Distinct() []string {
	seen := make(map[string]struct{}, len(u))
	out := make([]string, 0, len(u))
	for _, id := range u {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
