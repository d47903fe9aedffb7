package steam

import (
	"fmt"
	"strings"
	"time"
)

// Player is one entry of ISteamUser/GetPlayerSummaries.
type Player struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	ProfileURL  string `json:"profileurl"`
	Avatar      string `json:"avatar"`
	AvatarFull  string `json:"avatarfull"`
	CountryCode string `json:"loccountrycode"`
	TimeCreated int64  `json:"timecreated"`
}

// OwnedGame is one entry of IPlayerService/GetOwnedGames. Playtimes are
// minutes.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	IconHash        string `json:"img_icon_url"`
	PlaytimeForever int64  `json:"playtime_forever"`
	Playtime2Weeks  int64  `json:"playtime_2weeks"`
	RTimeLastPlayed int64  `json:"rtime_last_played"`
}

// IconURL expands the icon hash into a CDN url, or "" when the game has no icon.
func (g OwnedGame) IconURL() string {
	if g.IconHash == "" {
		return ""
	}
	return fmt.Sprintf("https://media.steampowered.com/steamcommunity/public/images/apps/%d/%s.jpg", g.AppID, g.IconHash)
}

// DisplayName falls back to a placeholder for delisted games Steam returns
// without a name.
func (g OwnedGame) DisplayName() string {
	if g.Name == "" {
		return fmt.Sprintf("Unknown Game %d", g.AppID)
	}
	return g.Name
}

// LastPlayed is nil when Steam has no record of the game being launched.
func (g OwnedGame) LastPlayed() *time.Time {
	return unixPtr(g.RTimeLastPlayed)
}

// AchievementSchema is an achievement definition from GetSchemaForGame.
type AchievementSchema struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Hidden      int    `json:"hidden"`
	Icon        string `json:"icon"`
}

// PlayerAchievement is one row of GetPlayerAchievements.
type PlayerAchievement struct {
	APIName    string `json:"apiname"`
	Achieved   int    `json:"achieved"`
	UnlockTime int64  `json:"unlocktime"`
}

func (a PlayerAchievement) Unlocked() *time.Time {
	if a.Achieved == 0 {
		return nil
	}
	return unixPtr(a.UnlockTime)
}

type playerSummariesResponse struct {
	Response struct {
		Players []Player `json:"players"`
	} `json:"response"`
}

type ownedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

type schemaResponse struct {
	Game struct {
		GameName           string `json:"gameName"`
		AvailableGameStats struct {
			Achievements []AchievementSchema `json:"achievements"`
		} `json:"availableGameStats"`
	} `json:"game"`
}

type playerAchievementsResponse struct {
	PlayerStats struct {
		Success      bool                `json:"success"`
		Error        string              `json:"error"`
		Achievements []PlayerAchievement `json:"achievements"`
	} `json:"playerstats"`
}

type globalPercentagesResponse struct {
	AchievementPercentages struct {
		Achievements []struct {
			Name    string  `json:"name"`
			Percent float64 `json:"percent"`
		} `json:"achievements"`
	} `json:"achievementpercentages"`
}

// AppDetails is the data block of the Store API appdetails answer.
type AppDetails struct {
	Name        string      `json:"name"`
	HeaderImage string      `json:"header_image"`
	Developers  []string    `json:"developers"`
	Publishers  []string    `json:"publishers"`
	Metacritic  *Metacritic `json:"metacritic"`
	Genres      []StoreTag  `json:"genres"`
	Categories  []StoreTag  `json:"categories"`
}

type Metacritic struct {
	Score int `json:"score"`
}

// StoreTag is a genre or category. The store sends genre ids as strings and
// category ids as numbers, so only the description is decoded.
type StoreTag struct {
	Description string `json:"description"`
}

func (d *AppDetails) Developer() string {
	return strings.Join(d.Developers, ", ")
}

func (d *AppDetails) Publisher() string {
	return strings.Join(d.Publishers, ", ")
}

// MetacriticScore is 0 when the game has no score.
func (d *AppDetails) MetacriticScore() int {
	if d.Metacritic == nil {
		return 0
	}
	return d.Metacritic.Score
}

func (d *AppDetails) GenreNames() []string {
	return tagNames(d.Genres)
}

func (d *AppDetails) CategoryNames() []string {
	return tagNames(d.Categories)
}

func tagNames(tags []StoreTag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Description != "" {
			out = append(out, t.Description)
		}
	}
	return out
}

// appDetailsResponse is keyed by the requested app id.
type appDetailsResponse map[string]struct {
	Success bool        `json:"success"`
	Data    *AppDetails `json:"data"`
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
