package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/repository"
)

const MaxBacklogNotesLength = 2000

// BacklogService manages a user's play queue.
type BacklogService struct {
	backlog repository.BacklogRepository
	users   repository.UserRepository
	games   repository.GameRepository
	logger  *slog.Logger
}

func NewBacklogService(backlog repository.BacklogRepository, users repository.UserRepository, games repository.GameRepository, logger *slog.Logger) *BacklogService {
	return &BacklogService{backlog: backlog, users: users, games: games, logger: logger}
}

// BacklogInput carries the writable fields of an entry. Nil fields are left
// unchanged by Update.
type BacklogInput struct {
	Status   *model.BacklogStatus
	Priority *int
	Notes    *string
}

// List returns the user's entries, optionally filtered by status.
func (s *BacklogService) List(ctx context.Context, userID, status string) ([]model.BacklogEntry, error) {
	userID, err := requireID("userId", userID)
	if err != nil {
		return nil, err
	}
	var filter model.BacklogStatus
	if status != "" {
		if filter, err = parseBacklogStatus(status); err != nil {
			return nil, err
		}
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.backlog.ListBacklog(ctx, userID, filter)
}

// Add creates an entry. Status defaults to backlog. A second entry for the
// same game fails with apperror.ErrConflict.
func (s *BacklogService) Add(ctx context.Context, userID, gameID string, in BacklogInput) (*model.BacklogEntry, error) {
	userID, err := requireID("userId", userID)
	if err != nil {
		return nil, err
	}
	gameID, err = requireID("gameId", gameID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	entry := &model.BacklogEntry{UserID: userID, GameID: gameID, GameName: game.Name, Status: model.BacklogQueued}
	if err := applyBacklogInput(entry, in, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.backlog.CreateBacklogEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("backlog entry added",
		slog.String("user", userID),
		slog.String("game", gameID),
		slog.String("status", string(entry.Status)),
	)
	return entry, nil
}

// Update applies the non-nil fields of in. Moving to playing stamps
// StartedAt once; moving to completed stamps CompletedAt.
func (s *BacklogService) Update(ctx context.Context, userID, entryID string, in BacklogInput) (*model.BacklogEntry, error) {
	userID, err := requireID("userId", userID)
	if err != nil {
		return nil, err
	}
	entryID, err = requireID("entryId", entryID)
	if err != nil {
		return nil, err
	}
	entry, err := s.backlog.GetBacklogEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := applyBacklogInput(entry, in, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.backlog.UpdateBacklogEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("updating backlog entry: %w", err)
	}
	return entry, nil
}

func (s *BacklogService) Remove(ctx context.Context, userID, entryID string) error {
	userID, err := requireID("userId", userID)
	if err != nil {
		return err
	}
	entryID, err = requireID("entryId", entryID)
	if err != nil {
		return err
	}
	return s.backlog.DeleteBacklogEntry(ctx, userID, entryID)
}

func applyBacklogInput(e *model.BacklogEntry, in BacklogInput, now time.Time) error {
	if in.Status != nil {
		status, err := parseBacklogStatus(string(*in.Status))
		if err != nil {
			return err
		}
		e.Status = status
	}
	if in.Priority != nil {
		e.Priority = *in.Priority
	}
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if len(notes) > MaxBacklogNotesLength {
			return apperror.ValidationFailed("notes",
				fmt.Sprintf("notes must be %d characters or less", MaxBacklogNotesLength))
		}
		e.Notes = notes
	}

	switch e.Status {
	case model.BacklogPlaying:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
	case model.BacklogCompleted:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
		if e.CompletedAt == nil {
			e.CompletedAt = &now
		}
	}
	return nil
}

func parseBacklogStatus(s string) (model.BacklogStatus, error) {
	status := model.BacklogStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperror.ValidationFailed("status",
			fmt.Sprintf("unknown status %q: use backlog, playing, completed, abandoned or wishlist", s))
	}
	return status, nil
}
