package model

import "time"

type SyncType string

const (
	SyncProfile      SyncType = "profile"
	SyncGames        SyncType = "games"
	SyncAchievements SyncType = "achievements"
)

type SyncStatus string

const (
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncRecord is one row of a user's sync history.
type SyncRecord struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Type         SyncType   `json:"syncType"`
	Status       SyncStatus `json:"status"`
	ItemsSynced  int        `json:"itemsSynced"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  time.Time  `json:"completedAt"`
}

// GlobalStats are dashboard-wide totals.
type GlobalStats struct {
	TotalUsers           int     `json:"totalUsers"`
	TotalGroups          int     `json:"totalGroups"`
	TotalGames           int     `json:"totalGames"`
	TotalPlaytimeHours   float64 `json:"totalPlaytimeHours"`
	AchievementsUnlocked int     `json:"achievementsUnlocked"`
}
