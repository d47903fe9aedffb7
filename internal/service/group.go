package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

const (
	MaxGroupNameLength        = 100
	MaxGroupDescriptionLength = 1000
)

// GroupService owns the group registry and runs aggregations over groups.
//
// Membership changes are delegated to the repository, which applies each
// call in a single transaction: AddMembers either adds every id or none.
// Aggregations read membership and ownership from one snapshot through the
// aggregate.GroupMembers provider.
type GroupService struct {
	repo   repository.GroupRepository
	agg    Aggregator
	logger *slog.Logger
}

func NewGroupService(repo repository.GroupRepository, agg Aggregator, logger *slog.Logger) *GroupService {
	return &GroupService{repo: repo, agg: agg, logger: logger}
}

func (s *GroupService) Create(ctx context.Context, name, description string) (*model.Group, error) {
	name, err := validateGroupName(name)
	if err != nil {
		return nil, err
	}
	description, err = validateGroupDescription(description)
	if err != nil {
		return nil, err
	}

	group := &model.Group{Name: name, Description: description}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		s.logger.Error("failed to create group",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating group: %w", err)
	}

	s.logger.Info("group created", slog.String("id", group.ID), slog.String("name", group.Name))
	return group, nil
}

func (s *GroupService) List(ctx context.Context, limit, offset int) ([]model.Group, error) {
	groups, err := s.repo.ListGroups(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

// Get returns the group with its member profiles.
func (s *GroupService) Get(ctx context.Context, id string) (*model.GroupDetail, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.GroupMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.GroupDetail{Group: *group, Members: members}, nil
}

// Update changes the fields that are non-nil. A nil name keeps the current
// one; an empty name is rejected.
func (s *GroupService) Update(ctx context.Context, id string, name, description *string) (*model.Group, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		if group.Name, err = validateGroupName(*name); err != nil {
			return nil, err
		}
	}
	if description != nil {
		if group.Description, err = validateGroupDescription(*description); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("updating group: %w", err)
	}
	s.logger.Info("group updated", slog.String("id", id))
	return group, nil
}

// Delete removes the group and its membership rows. Users and their
// libraries are untouched.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.logger.Info("group deleted", slog.String("id", id))
	return nil
}

// AddMembers adds users to a group and returns the resulting member ids.
// Adding an existing member is a no-op; one unknown id rejects the call.
func (s *GroupService) AddMembers(ctx context.Context, id string, userIDs []string) ([]string, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	ids := aggregate.UserSet(userIDs).Distinct()
	if len(ids) == 0 {
		return nil, apperror.ValidationFailed("userIds", "at least one user id is required")
	}

	members, err := s.repo.AddMembers(ctx, id, ids)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group members added",
		slog.String("group", id),
		slog.Int("requested", len(ids)),
		slog.Int("members", len(members)),
	)
	return members, nil
}

// RemoveMember drops one user from a group. Removing a non-member changes
// nothing and still succeeds.
func (s *GroupService) RemoveMember(ctx context.Context, id, userID string) ([]string, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	userID, err = requireID("userId", userID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.RemoveMember(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group member removed", slog.String("group", id), slog.String("user", userID))
	return members, nil
}

// Intersection ranks every game owned by at least one member.
func (s *GroupService) Intersection(ctx context.Context, id string) (*aggregate.Intersection, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	return s.agg.Intersect(ctx, aggregate.GroupMembers(id))
}

// Compare runs the user comparison over the group's members and returns the
// group header read alongside it. The group must have between 2 and 5 members.
func (s *GroupService) Compare(ctx context.Context, id string) (*model.Group, *aggregate.Comparison, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, nil, err
	}
	return s.agg.CompareGroup(ctx, id)
}

func validateGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "group name is required")
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("group name must be %d characters or less", MaxGroupNameLength))
	}
	return name, nil
}

func validateGroupDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > MaxGroupDescriptionLength {
		return "", apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxGroupDescriptionLength))
	}
	return description, nil
}
