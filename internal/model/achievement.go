package model

import "time"

// Achievement is an achievement definition for one game.
type Achievement struct {
	ID            string   `json:"id"`
	GameID        string   `json:"gameId"`
	APIName       string   `json:"apiName"`
	DisplayName   string   `json:"displayName"`
	Description   string   `json:"description,omitempty"`
	Hidden        bool     `json:"hidden"`
	GlobalPercent *float64 `json:"globalPercent,omitempty"`
}

// UserAchievement records whether a user unlocked an achievement.
type UserAchievement struct {
	UserID        string     `json:"userId"`
	AchievementID string     `json:"achievementId"`
	Achieved      bool       `json:"achieved"`
	UnlockTime    *time.Time `json:"unlockTime,omitempty"`
}
