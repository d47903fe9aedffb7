package model

import "time"

// BacklogStatus is the play state a user assigns to a game.
type BacklogStatus string

const (
	BacklogQueued    BacklogStatus = "backlog"
	BacklogPlaying   BacklogStatus = "playing"
	BacklogCompleted BacklogStatus = "completed"
	BacklogAbandoned BacklogStatus = "abandoned"
	BacklogWishlist  BacklogStatus = "wishlist"
)

// Valid reports whether s is one of the known statuses.
func (s BacklogStatus) Valid() bool {
	switch s {
	case BacklogQueued, BacklogPlaying, BacklogCompleted, BacklogAbandoned, BacklogWishlist:
		return true
	}
	return false
}

// BacklogEntry tracks a game a user intends to play, is playing or finished.
// At most one entry exists per (user, game).
type BacklogEntry struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	GameID      string        `json:"gameId"`
	GameName    string        `json:"gameName"`
	Status      BacklogStatus `json:"status"`
	Priority    int           `json:"priority"`
	Notes       string        `json:"notes"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
