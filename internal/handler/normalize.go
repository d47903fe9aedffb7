package handler

// BOUNDARY NORMALIZATION:
// The aggregate package returns plain Go values with no JSON tags. This file
// is the only place they are turned into wire shapes, so every endpoint that
// returns an intersection row or a comparison emits the same fields.

import (
	"github.com/sakif/steam-arena/internal/aggregate"
	"github.com/sakif/steam-arena/internal/model"
)

// gameIntersectionLimit caps each list of the game-intersection view.
const gameIntersectionLimit = 20

type intersectionRow struct {
	GameID        string   `json:"gameId"`
	AppID         int64    `json:"appId"`
	Name          string   `json:"name"`
	OwnerCount    int      `json:"ownerCount"`
	Owners        []string `json:"owners"`
	TotalPlaytime int64    `json:"totalPlaytime"`
	AvgPlaytime   float64  `json:"avgPlaytime"`
}

type intersectionResponse struct {
	GroupID     string            `json:"groupId"`
	MemberCount int               `json:"memberCount"`
	Games       []intersectionRow `json:"games"`
	OwnedByAll  []intersectionRow `json:"ownedByAll"`
}

type sharedGame struct {
	intersectionRow
	OwnershipPercentage float64 `json:"ownershipPercentage"`
}

type gameIntersectionResponse struct {
	GroupID              string       `json:"groupId"`
	TotalMembers         int          `json:"totalMembers"`
	GamesOwnedByAll      []sharedGame `json:"gamesOwnedByAll"`
	GamesOwnedByMajority []sharedGame `json:"gamesOwnedByMajority"`
}

type comparisonUser struct {
	UserID               string `json:"userId"`
	TotalGames           int    `json:"totalGames"`
	TotalPlaytime        int64  `json:"totalPlaytime"`
	GamesPlayed          int    `json:"gamesPlayed"`
	AchievementsUnlocked int    `json:"achievementsUnlocked"`
}

type comparisonResponse struct {
	Users              []comparisonUser  `json:"users"`
	CommonGames        []intersectionRow `json:"commonGames"`
	TotalUniqueGames   int               `json:"totalUniqueGames"`
	PlaytimeRanking    []string          `json:"playtimeRanking"`
	AchievementRanking []string          `json:"achievementRanking"`
}

type groupComparisonResponse struct {
	Group      model.Group        `json:"group"`
	Comparison comparisonResponse `json:"comparison"`
}

func toRow(r aggregate.Row) intersectionRow {
	owners := r.Owners
	if owners == nil {
		owners = []string{}
	}
	return intersectionRow{
		GameID:        r.GameID,
		AppID:         r.AppID,
		Name:          r.Name,
		OwnerCount:    r.OwnerCount,
		Owners:        owners,
		TotalPlaytime: r.TotalPlaytime,
		AvgPlaytime:   r.AvgPlaytime,
	}
}

func toRows(rows []aggregate.Row) []intersectionRow {
	out := make([]intersectionRow, len(rows))
	for i, r := range rows {
		out[i] = toRow(r)
	}
	return out
}

func toIntersection(groupID string, in *aggregate.Intersection) intersectionResponse {
	return intersectionResponse{
		GroupID:     groupID,
		MemberCount: len(in.Members),
		Games:       toRows(in.Rows),
		OwnedByAll:  toRows(in.OwnedByAll()),
	}
}

func toGameIntersection(groupID string, in *aggregate.Intersection) gameIntersectionResponse {
	shared := func(rows []aggregate.Row) []sharedGame {
		if len(rows) > gameIntersectionLimit {
			rows = rows[:gameIntersectionLimit]
		}
		out := make([]sharedGame, len(rows))
		for i, r := range rows {
			out[i] = sharedGame{intersectionRow: toRow(r), OwnershipPercentage: in.OwnershipPercentage(r)}
		}
		return out
	}
	return gameIntersectionResponse{
		GroupID:              groupID,
		TotalMembers:         len(in.Members),
		GamesOwnedByAll:      shared(in.OwnedByAll()),
		GamesOwnedByMajority: shared(in.OwnedByMajority()),
	}
}

func toComparison(c *aggregate.Comparison) comparisonResponse {
	users := make([]comparisonUser, len(c.Users))
	for i, u := range c.Users {
		users[i] = comparisonUser{
			UserID:               u.UserID,
			TotalGames:           u.TotalGames,
			TotalPlaytime:        u.TotalPlaytime,
			GamesPlayed:          u.GamesPlayed,
			AchievementsUnlocked: u.AchievementsUnlocked,
		}
	}
	return comparisonResponse{
		Users:              users,
		CommonGames:        toRows(c.CommonGames),
		TotalUniqueGames:   c.TotalUniqueGames,
		PlaytimeRanking:    nonNil(c.PlaytimeRanking),
		AchievementRanking: nonNil(c.AchievementRanking),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
