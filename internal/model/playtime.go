package model

import "time"

// PlaytimePoint is one snapshot row: a user's total playtime in one game at
// the moment the snapshot ran.
type PlaytimePoint struct {
	GameID        string    `json:"gameId"`
	AppID         int64     `json:"appId"`
	Name          string    `json:"name"`
	PlaytimeTotal int64     `json:"playtimeTotal"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// SnapshotRun reports one playtime snapshot.
type SnapshotRun struct {
	RecordedAt time.Time `json:"recordedAt"`
	Created    int       `json:"snapshotsCreated"`
}

// SnapshotDay counts the snapshot rows recorded on one UTC day.
type SnapshotDay struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"snapshotsCount"`
}

// PeriodGame is the most played game of a period.
type PeriodGame struct {
	GameID          string  `json:"gameId"`
	AppID           int64   `json:"appId"`
	Name            string  `json:"name"`
	PlaytimeMinutes int64   `json:"playtimeMinutes"`
	PlaytimeHours   float64 `json:"playtimeHours"`
}

// PeriodStats is the playtime of one calendar year or month, derived from
// snapshots. Month is zero for yearly stats.
type PeriodStats struct {
	Year                 int         `json:"year"`
	Month                int         `json:"month,omitempty"`
	MonthName            string      `json:"monthName,omitempty"`
	TotalPlaytimeMinutes int64       `json:"totalPlaytimeMinutes"`
	TotalPlaytimeHours   float64     `json:"totalPlaytimeHours"`
	GamesPlayedCount     int         `json:"gamesPlayedCount"`
	NewGamesCount        int         `json:"newGamesCount"`
	MostPlayedGame       *PeriodGame `json:"mostPlayedGame"`
	AchievementsUnlocked int         `json:"achievementsUnlocked"`
}
