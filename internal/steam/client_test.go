package steam

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, RequestsPerSecond: 1000, Burst: 100}, logger)
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, c.Enabled())

	_, err := c.GetOwnedGames(context.Background(), "1")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_GetPlayerSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v2/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "76561197960287930", r.URL.Query().Get("steamids"))
		_, _ = io.WriteString(w, `{"response":{"players":[
			{"steamid":"76561197960287930","personaname":"Rabscuttle","profileurl":"https://steamcommunity.com/id/rabscuttle/",
			 "avatar":"https://avatars/a.jpg","loccountrycode":"US","timecreated":1063407589}]}}`)
	})

	p, err := c.GetPlayerSummary(context.Background(), "76561197960287930")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Rabscuttle", p.PersonaName)
	assert.Equal(t, "US", p.CountryCode)
}

func TestClient_GetPlayerSummary_Unknown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":{"players":[]}}`)
	})

	p, err := c.GetPlayerSummary(context.Background(), "1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClient_GetPlayerSummaries_Batches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ids := strings.Split(r.URL.Query().Get("steamids"), ",")
		assert.LessOrEqual(t, len(ids), 100)
		_, _ = io.WriteString(w, `{"response":{"players":[]}}`)
	})

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "id"
	}
	_, err := c.GetPlayerSummaries(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GetOwnedGames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_appinfo"))
		_, _ = io.WriteString(w, `{"response":{"game_count":2,"games":[
			{"appid":440,"name":"Team Fortress 2","img_icon_url":"abc","playtime_forever":1200,"playtime_2weeks":30,"rtime_last_played":1700000000},
			{"appid":999,"playtime_forever":0}]}}`)
	})

	games, err := c.GetOwnedGames(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, games, 2)

	tf2 := games[0]
	assert.Equal(t, int64(1200), tf2.PlaytimeForever)
	assert.Equal(t, int64(30), tf2.Playtime2Weeks)
	assert.Contains(t, tf2.IconURL(), "/440/abc.jpg")
	require.NotNil(t, tf2.LastPlayed())
	assert.Equal(t, int64(1700000000), tf2.LastPlayed().Unix())

	assert.Equal(t, "Unknown Game 999", games[1].DisplayName())
	assert.Empty(t, games[1].IconURL())
	assert.Nil(t, games[1].LastPlayed())
}

func TestClient_PrivateProfileIsEmptyLibrary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":{}}`)
	})

	games, err := c.GetOwnedGames(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestClient_GetPlayerAchievements(t *testing.T) {
	t.Run("unlocked and locked", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "440", r.URL.Query().Get("appid"))
			_, _ = io.WriteString(w, `{"playerstats":{"success":true,"achievements":[
				{"apiname":"medic","achieved":1,"unlocktime":1600000000},
				{"apiname":"sniper","achieved":0,"unlocktime":0}]}}`)
		})

		got, err := c.GetPlayerAchievements(context.Background(), "1", 440)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.NotNil(t, got[0].Unlocked())
		assert.Nil(t, got[1].Unlocked())
	})

	t.Run("game without stats", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"playerstats":{"error":"Requested app has no stats","success":false}}`)
		})

		_, err := c.GetPlayerAchievements(context.Background(), "1", 440)
		assert.ErrorIs(t, err, ErrNoStats)
	})
}

func TestClient_GetSchemaAndPercentages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "GetSchemaForGame"):
			_, _ = io.WriteString(w, `{"game":{"gameName":"TF2","availableGameStats":{"achievements":[
				{"name":"medic","displayName":"Medic","description":"Heal","hidden":1}]}}}`)
		default:
			_, _ = io.WriteString(w, `{"achievementpercentages":{"achievements":[{"name":"medic","percent":12.5}]}}`)
		}
	})

	schema, err := c.GetSchemaForGame(context.Background(), 440)
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "Medic", schema[0].DisplayName)
	assert.Equal(t, 1, schema[0].Hidden)

	pct, err := c.GetGlobalAchievementPercentages(context.Background(), 440)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, pct["medic"], 1e-9)
}

func TestClient_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := c.GetOwnedGames(context.Background(), "1")
		var se *StatusError
		require.True(t, errors.As(err, &se), "attempt %d: %v", i, err)
		assert.Equal(t, http.StatusBadGateway, se.Code)
	}

	_, err := c.GetOwnedGames(context.Background(), "1")
	assert.Error(t, err)
	assert.Equal(t, int32(5), calls.Load(), "an open breaker must not reach the server")
}

func TestClient_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	for i := 0; i < 8; i++ {
		_, _ = c.GetOwnedGames(context.Background(), "1")
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestClient_GetAppDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appdetails", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("key"), "the store api takes no key")
		switch r.URL.Query().Get("appids") {
		case "620":
			_, _ = io.WriteString(w, `{"620":{"success":true,"data":{
				"name":"Portal 2","header_image":"https://cdn/620/header.jpg",
				"developers":["Valve"],"publishers":["Valve","Electronic Arts"],
				"metacritic":{"score":95,"url":"https://metacritic"},
				"genres":[{"id":"1","description":"Action"},{"id":"25","description":"Adventure"}],
				"categories":[{"id":2,"description":"Single-player"},{"id":9,"description":"Co-op"}]}}}`)
		default:
			_, _ = io.WriteString(w, `{"1":{"success":false}}`)
		}
	}))
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// No API key: store reads still work.
	c := NewClient(Config{StoreURL: srv.URL, RequestsPerSecond: 1000, Burst: 100}, logger)

	d, err := c.GetAppDetails(context.Background(), 620)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Portal 2", d.Name)
	assert.Equal(t, "Valve", d.Developer())
	assert.Equal(t, "Valve, Electronic Arts", d.Publisher())
	assert.Equal(t, 95, d.MetacriticScore())
	assert.Equal(t, []string{"Action", "Adventure"}, d.GenreNames())
	assert.Equal(t, []string{"Single-player", "Co-op"}, d.CategoryNames())

	missing, err := c.GetAppDetails(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
