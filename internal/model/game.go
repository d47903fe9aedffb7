package model

import "time"

// Game is a canonical catalog entry shared by all users.
type Game struct {
	ID              string    `json:"id"`
	AppID           int64     `json:"appId"` // Steam app id, unique
	Name            string    `json:"name"`
	IconURL         string    `json:"iconUrl,omitempty"`
	HeaderImage     string    `json:"headerImage,omitempty"`
	Developer       string    `json:"developer,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	MetacriticScore int       `json:"metacriticScore,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// GameWithStats adds library-wide aggregates to a catalog entry.
type GameWithStats struct {
	Game
	OwnerCount    int   `json:"ownerCount"`
	TotalPlaytime int64 `json:"totalPlaytime"`
}

// Ownership is the fact that a user owns a game.
//
// Playtimes are minutes. PlaytimeTotal never decreases under resync; only an
// explicit reset lowers it. PlaytimeRecent covers the last two weeks and is
// replaced on every sync.
type Ownership struct {
	UserID         string     `json:"userId"`
	GameID         string     `json:"gameId"`
	PlaytimeTotal  int64      `json:"playtimeTotal"`
	PlaytimeRecent int64      `json:"playtimeRecent"`
	LastPlayed     *time.Time `json:"lastPlayed,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// OwnedGame is one entry of a user's library as seen by the ownership index.
type OwnedGame struct {
	GameID         string     `json:"gameId"`
	AppID          int64      `json:"appId"`
	Name           string     `json:"name"`
	IconURL        string     `json:"iconUrl,omitempty"`
	PlaytimeTotal  int64      `json:"playtimeTotal"`
	PlaytimeRecent int64      `json:"playtimeRecent"`
	LastPlayed     *time.Time `json:"lastPlayed,omitempty"`
}

// GameOwner is one owner of a game as seen by the ownership index.
type GameOwner struct {
	UserID        string `json:"userId"`
	PersonaName   string `json:"personaName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	PlaytimeTotal int64  `json:"playtimeTotal"`
}

// GameDetail is a catalog entry with its Steam store taxonomy.
type GameDetail struct {
	Game
	Genres     []string `json:"genres"`
	Categories []string `json:"categories"`
}

// Genre is a store genre with the number of catalog games tagged with it.
type Genre struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GameCount int    `json:"gameCount"`
}

// GenrePlaytime is one genre's share of a user's playtime. A game with
// several genres counts toward each of them.
type GenrePlaytime struct {
	Genre                string  `json:"genre"`
	TotalPlaytimeMinutes int64   `json:"totalPlaytimeMinutes"`
	TotalPlaytimeHours   int64   `json:"totalPlaytimeHours"`
	GameCount            int     `json:"gameCount"`
	AvgPlaytimeMinutes   float64 `json:"avgPlaytimeMinutes"`
	Percentage           float64 `json:"percentage"`
}
