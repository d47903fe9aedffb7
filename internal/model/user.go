// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a player profile mirrored from Steam.
//
// SteamID is the external identity (a 17 digit SteamID64 kept as a string);
// ID is our own xid so primary keys do not depend on Steam's numbering.
// Profile fields are refreshed by the sync service and may be empty until the
// first successful profile sync.
type User struct {
	ID          string    `json:"id"`
	SteamID     string    `json:"steamId"`
	PersonaName string    `json:"personaName"`
	ProfileURL  string    `json:"profileUrl"`
	AvatarURL   string    `json:"avatarUrl"`
	CountryCode string    `json:"countryCode"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserStats is the per-user rollup over ownership and achievement facts.
type UserStats struct {
	UserID               string `json:"userId"`
	TotalGames           int    `json:"totalGames"`
	TotalPlaytime        int64  `json:"totalPlaytime"`
	GamesPlayed          int    `json:"gamesPlayed"`
	TotalAchievements    int    `json:"totalAchievements"`
	AchievementsUnlocked int    `json:"achievementsUnlocked"`
}

// CompletionRate is the percentage of tracked achievements unlocked.
func (s UserStats) CompletionRate() float64 {
	if s.TotalAchievements == 0 {
		return 0
	}
	return float64(s.AchievementsUnlocked) / float64(s.TotalAchievements) * 100
}

// UserWithStats pairs a profile with its rollup for list views.
type UserWithStats struct {
	User
	Stats UserStats `json:"stats"`
}

// UserDashboard is the per-user dashboard: library rollup, achievement
// completion and backlog counts by status.
type UserDashboard struct {
	User           User                  `json:"user"`
	Stats          UserStats             `json:"stats"`
	CompletionRate float64               `json:"completionRate"`
	Backlog        map[BacklogStatus]int `json:"backlog"`
	RecentSyncs    []SyncRecord          `json:"recentSyncs"`
}
