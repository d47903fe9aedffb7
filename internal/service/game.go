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

// GameService serves catalog reads.
type GameService struct {
	games    repository.GameRepository
	taxonomy repository.TaxonomyRepository
	agg      Aggregator
	logger   *slog.Logger
}

func NewGameService(games repository.GameRepository, taxonomy repository.TaxonomyRepository, agg Aggregator, logger *slog.Logger) *GameService {
	return &GameService{games: games, taxonomy: taxonomy, agg: agg, logger: logger}
}

// List searches the catalog by case-insensitive name substring. An empty
// search lists everything.
func (s *GameService) List(ctx context.Context, search string, limit, offset int) ([]model.Game, error) {
	games, err := s.games.ListGames(ctx, strings.TrimSpace(search), listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list games", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return games, nil
}

// Get returns the game with its genres and categories. Both lists are empty
// until the store details have been synced.
func (s *GameService) Get(ctx context.Context, id string) (*model.GameDetail, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	game, err := s.games.GetGameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	genres, categories, err := s.taxonomy.GameTaxonomy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy of %s: %w", id, err)
	}
	return &model.GameDetail{Game: *game, Genres: genres, Categories: categories}, nil
}

func (s *GameService) GetByAppID(ctx context.Context, appID int64) (*model.Game, error) {
	if appID <= 0 {
		return nil, apperror.ValidationFailed("appId", "app id must be a positive integer")
	}
	return s.games.GetGameByAppID(ctx, appID)
}

// Popular ranks games by number of owners.
func (s *GameService) Popular(ctx context.Context, limit int) ([]model.GameWithStats, error) {
	return s.games.PopularGames(ctx, listOptions(limit, 0).Limit)
}

// MostPlayed ranks games by summed playtime of all owners.
func (s *GameService) MostPlayed(ctx context.Context, limit int) ([]model.GameWithStats, error) {
	return s.games.MostPlayedGames(ctx, listOptions(limit, 0).Limit)
}

func (s *GameService) Genres(ctx context.Context) ([]model.Genre, error) {
	genres, err := s.taxonomy.ListGenres(ctx)
	if err != nil {
		s.logger.Error("failed to list genres", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing genres: %w", err)
	}
	return genres, nil
}

// GamesByGenre lists the catalog games tagged with a genre, by name.
func (s *GameService) GamesByGenre(ctx context.Context, genreID string, limit, offset int) ([]model.Game, error) {
	genreID, err := requireID("id", genreID)
	if err != nil {
		return nil, err
	}
	return s.taxonomy.GamesByGenre(ctx, genreID, listOptions(limit, offset))
}

// Owners lists who owns a game, highest playtime first.
func (s *GameService) Owners(ctx context.Context, id string) ([]model.GameOwner, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	return s.agg.OwnersOf(ctx, id)
}
