package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/steam-arena/internal/apperror"
)

func newTestGroupService(t *testing.T) (*GroupService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewGroupService(store, newTestEngine(store), testLogger()), store
}

func TestGroupCreate_Success(t *testing.T) {
	svc, _ := newTestGroupService(t)

	g, err := svc.Create(context.Background(), "  Friday squad  ", "  co-op nights ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.ID == "" {
		t.Error("expected group to have an ID")
	}
	if g.Name != "Friday squad" || g.Description != "co-op nights" {
		t.Errorf("Create() = %+v, want trimmed name and description", g)
	}
}

func TestGroupCreate_InvalidName(t *testing.T) {
	svc, _ := newTestGroupService(t)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too long", strings.Repeat("a", MaxGroupNameLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input, "")
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create(%q) error = %v, want ErrValidation", tt.input, err)
			}
		})
	}
}

func TestGroupCreate_MaxLengthNameAllowed(t *testing.T) {
	svc, _ := newTestGroupService(t)

	if _, err := svc.Create(context.Background(), strings.Repeat("é", MaxGroupNameLength), ""); err != nil {
		t.Errorf("Create() with %d runes error = %v", MaxGroupNameLength, err)
	}
}

func TestGroupAddMembers(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	b := store.addUser(t, "2", "bob")
	g, _ := svc.Create(ctx, "squad", "")

	members, err := svc.AddMembers(ctx, g.ID, []string{a.ID, b.ID, a.ID, " "})
	if err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %v, want 2 distinct ids", members)
	}

	// Re-adding is a no-op.
	members, err = svc.AddMembers(ctx, g.ID, []string{a.ID})
	if err != nil || len(members) != 2 {
		t.Errorf("repeat AddMembers() = (%v, %v), want 2 members", members, err)
	}
}

func TestGroupAddMembers_UnknownUserRejectsAll(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	g, _ := svc.Create(ctx, "squad", "")

	_, err := svc.AddMembers(ctx, g.ID, []string{a.ID, "ghost"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("AddMembers() error = %v, want ErrNotFound", err)
	}

	detail, err := svc.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(detail.Members) != 0 {
		t.Errorf("members after rejected add = %d, want 0", len(detail.Members))
	}
}

func TestGroupAddMembers_Validation(t *testing.T) {
	svc, _ := newTestGroupService(t)
	ctx := context.Background()
	g, _ := svc.Create(ctx, "squad", "")

	if _, err := svc.AddMembers(ctx, g.ID, nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("AddMembers(nil) error = %v, want ErrValidation", err)
	}
	if _, err := svc.AddMembers(ctx, "ghost", []string{"x"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddMembers(unknown group) error = %v, want ErrNotFound", err)
	}
}

func TestGroupRemoveMember_NonMemberIsNoop(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	b := store.addUser(t, "2", "bob")
	g, _ := svc.Create(ctx, "squad", "")
	if _, err := svc.AddMembers(ctx, g.ID, []string{a.ID}); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	members, err := svc.RemoveMember(ctx, g.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveMember(non-member) error = %v", err)
	}
	if len(members) != 1 || members[0] != a.ID {
		t.Errorf("members = %v, want [%s]", members, a.ID)
	}

	members, err = svc.RemoveMember(ctx, g.ID, a.ID)
	if err != nil || len(members) != 0 {
		t.Errorf("RemoveMember(member) = (%v, %v), want empty", members, err)
	}
}

func TestGroupUpdate(t *testing.T) {
	svc, _ := newTestGroupService(t)
	ctx := context.Background()
	g, _ := svc.Create(ctx, "squad", "old")

	desc := "new"
	updated, err := svc.Update(ctx, g.ID, nil, &desc)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "squad" || updated.Description != "new" {
		t.Errorf("Update() = %+v, want name kept and description replaced", updated)
	}

	empty := " "
	if _, err := svc.Update(ctx, g.ID, &empty, nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update(empty name) error = %v, want ErrValidation", err)
	}
}

func TestGroupDelete_KeepsUsers(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	g, _ := svc.Create(ctx, "squad", "")
	_, _ = svc.AddMembers(ctx, g.ID, []string{a.ID})

	if err := svc.Delete(ctx, g.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, g.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetUserByID(ctx, a.ID); err != nil {
		t.Errorf("user removed with group: %v", err)
	}
	if err := svc.Delete(ctx, g.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestGroupIntersection(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	b := store.addUser(t, "2", "bob")
	c := store.addUser(t, "3", "carol")
	tf2 := store.addGame(t, 440, "Team Fortress 2")
	dota := store.addGame(t, 570, "Dota 2")
	store.own(t, a, tf2, 100)
	store.own(t, b, tf2, 50)
	store.own(t, c, dota, 10)

	g, _ := svc.Create(ctx, "squad", "")
	if _, err := svc.AddMembers(ctx, g.ID, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	in, err := svc.Intersection(ctx, g.ID)
	if err != nil {
		t.Fatalf("Intersection() error = %v", err)
	}
	if len(in.Rows) != 1 {
		t.Fatalf("rows = %+v, want only the members' game", in.Rows)
	}
	row := in.Rows[0]
	if row.GameID != tf2.ID || row.OwnerCount != 2 || row.TotalPlaytime != 150 || row.AvgPlaytime != 75 {
		t.Errorf("row = %+v", row)
	}

	// Membership changes are visible to the next intersection.
	if _, err := svc.AddMembers(ctx, g.ID, []string{c.ID}); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}
	in, _ = svc.Intersection(ctx, g.ID)
	if len(in.Rows) != 2 || len(in.OwnedByAll()) != 0 {
		t.Errorf("after adding carol: rows = %d, ownedByAll = %d, want 2 and 0", len(in.Rows), len(in.OwnedByAll()))
	}
}

func TestGroupIntersection_EmptyGroup(t *testing.T) {
	svc, _ := newTestGroupService(t)
	g, _ := svc.Create(context.Background(), "empty", "")

	in, err := svc.Intersection(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Intersection() error = %v", err)
	}
	if len(in.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(in.Rows))
	}
}

func TestGroupCompare_Cardinality(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	g, _ := svc.Create(ctx, "solo", "")
	_, _ = svc.AddMembers(ctx, g.ID, []string{a.ID})

	if _, _, err := svc.Compare(ctx, g.ID); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Compare(1 member) error = %v, want ErrValidation", err)
	}
}

func TestGroupCompare_HeaderMatchesMembers(t *testing.T) {
	svc, store := newTestGroupService(t)
	ctx := context.Background()
	a := store.addUser(t, "1", "alice")
	b := store.addUser(t, "2", "bob")
	g, _ := svc.Create(ctx, "duo", "")
	if _, err := svc.AddMembers(ctx, g.ID, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	group, cmp, err := svc.Compare(ctx, g.ID)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if group.Name != "duo" || group.MemberCount != len(cmp.Users) {
		t.Errorf("group = %+v with %d compared users, want duo with matching count", group, len(cmp.Users))
	}
}
