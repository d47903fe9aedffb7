package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

// UserService serves profile and library reads.
type UserService struct {
	users  repository.UserRepository
	owns   repository.OwnershipRepository
	agg    Aggregator
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, owns repository.OwnershipRepository, agg Aggregator, logger *slog.Logger) *UserService {
	return &UserService{users: users, owns: owns, agg: agg, logger: logger}
}

// List returns a page of users, each with its library rollup.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.UserWithStats, error) {
	users, err := s.users.ListUsers(ctx, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}

	out := make([]model.UserWithStats, 0, len(users))
	for _, u := range users {
		stats, err := s.agg.UserStats(ctx, u.ID)
		if err != nil {
			// Deleted between the list and the rollup.
			if apperror.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("stats for user %s: %w", u.ID, err)
		}
		out = append(out, model.UserWithStats{User: u, Stats: *stats})
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.UserWithStats, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.agg.UserStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.UserWithStats{User: *user, Stats: *stats}, nil
}

func (s *UserService) GetBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	steamID, err := requireID("steamId", steamID)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserBySteamID(ctx, steamID)
}

// Games returns a user's library. sort is one of playtime, name or recent;
// empty means playtime.
func (s *UserService) Games(ctx context.Context, id, sort string) ([]model.OwnedGame, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	order, err := parseGameSort(sort)
	if err != nil {
		return nil, err
	}
	return s.owns.UserGames(ctx, id, order)
}

// Delete removes a user together with every fact that references it.
func (s *UserService) Delete(ctx context.Context, id string) error {
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("id", id))
	return nil
}

// ResetPlaytime zeroes the playtime of one owned game. A later sync can
// only raise it again from zero.
func (s *UserService) ResetPlaytime(ctx context.Context, id, gameID string) error {
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	gameID, err = requireID("gameId", gameID)
	if err != nil {
		return err
	}
	if err := s.owns.ResetPlaytime(ctx, id, gameID); err != nil {
		return err
	}
	s.logger.Info("playtime reset", slog.String("user", id), slog.String("game", gameID))
	return nil
}

func parseGameSort(sort string) (repository.GameSort, error) {
	switch repository.GameSort(strings.ToLower(strings.TrimSpace(sort))) {
	case "", repository.SortByPlaytime:
		return repository.SortByPlaytime, nil
	case repository.SortByName:
		return repository.SortByName, nil
	case repository.SortByRecent:
		return repository.SortByRecent, nil
	}
	return "", apperror.ValidationFailed("sort", fmt.Sprintf("unknown sort %q: use playtime, name or recent", sort))
}
