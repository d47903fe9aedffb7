// Package steam is a small client for the parts of the Steam Web API the sync
// service needs: player summaries, owned games and achievements. It also
// reads game details from the public Store API, which needs no key.
//
// Every call goes through a token-bucket limiter and a circuit breaker.
// Steam answers 4xx for private profiles and games without stats; those are
// returned as *StatusError and do not count against the breaker.
package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/sakif/steam-arena/internal/metrics"
)

const (
	DefaultBaseURL  = "https://api.steampowered.com"
	DefaultStoreURL = "https://store.steampowered.com/api"

	// GetPlayerSummaries accepts at most this many ids per call.
	maxSummaryBatch = 100
	maxBodyBytes    = 8 << 20
)

var (
	// ErrDisabled is returned by every call when no API key is configured.
	ErrDisabled = errors.New("steam api key not configured")
	// ErrNoStats means the game exposes no achievements for the player.
	ErrNoStats = errors.New("game has no stats")
)

// StatusError is a non-200 answer from Steam.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("steam %s: unexpected status %d", e.Endpoint, e.Code)
}

// Config holds client settings.
type Config struct {
	APIKey            string
	BaseURL           string
	StoreURL          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the Steam Web API. It is safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	storeURL string
	http     *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[[]byte]
	logger   *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = DefaultStoreURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		storeURL: strings.TrimRight(cfg.StoreURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:   logger,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "steam-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError && se.Code != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// GetPlayerSummaries fetches profiles in batches of 100. Unknown ids are
// silently absent from the result.
func (c *Client) GetPlayerSummaries(ctx context.Context, steamIDs []string) ([]Player, error) {
	var players []Player
	for start := 0; start < len(steamIDs); start += maxSummaryBatch {
		end := min(start+maxSummaryBatch, len(steamIDs))
		var resp playerSummariesResponse
		err := c.get(ctx, "ISteamUser/GetPlayerSummaries/v2", url.Values{
			"steamids": {strings.Join(steamIDs[start:end], ",")},
		}, &resp)
		if err != nil {
			return nil, err
		}
		players = append(players, resp.Response.Players...)
	}
	return players, nil
}

// GetPlayerSummary returns nil, nil when Steam does not know the id.
func (c *Client) GetPlayerSummary(ctx context.Context, steamID string) (*Player, error) {
	players, err := c.GetPlayerSummaries(ctx, []string{steamID})
	if err != nil {
		return nil, err
	}
	for i := range players {
		if players[i].SteamID == steamID {
			return &players[i], nil
		}
	}
	return nil, nil
}

// GetOwnedGames lists a player's library including free games that were
// played. A private profile yields an empty library.
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	var resp ownedGamesResponse
	err := c.get(ctx, "IPlayerService/GetOwnedGames/v1", url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"true"},
		"include_played_free_games": {"true"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Response.Games, nil
}

// GetSchemaForGame returns the achievement definitions of a game.
func (c *Client) GetSchemaForGame(ctx context.Context, appID int64) ([]AchievementSchema, error) {
	var resp schemaResponse
	err := c.get(ctx, "ISteamUserStats/GetSchemaForGame/v2", url.Values{
		"appid": {strconv.FormatInt(appID, 10)},
		"l":     {"english"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Game.AvailableGameStats.Achievements, nil
}

// GetPlayerAchievements returns ErrNoStats for games without achievements
// or when the player's stats are private.
func (c *Client) GetPlayerAchievements(ctx context.Context, steamID string, appID int64) ([]PlayerAchievement, error) {
	var resp playerAchievementsResponse
	err := c.get(ctx, "ISteamUserStats/GetPlayerAchievements/v1", url.Values{
		"steamid": {steamID},
		"appid":   {strconv.FormatInt(appID, 10)},
		"l":       {"english"},
	}, &resp)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusForbidden) {
		return nil, ErrNoStats
	}
	if err != nil {
		return nil, err
	}
	if !resp.PlayerStats.Success {
		return nil, ErrNoStats
	}
	return resp.PlayerStats.Achievements, nil
}

// GetGlobalAchievementPercentages maps api name to the share of all players
// holding the achievement.
func (c *Client) GetGlobalAchievementPercentages(ctx context.Context, appID int64) (map[string]float64, error) {
	var resp globalPercentagesResponse
	err := c.get(ctx, "ISteamUserStats/GetGlobalAchievementPercentagesForApp/v2", url.Values{
		"gameid": {strconv.FormatInt(appID, 10)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.AchievementPercentages.Achievements))
	for _, a := range resp.AchievementPercentages.Achievements {
		out[a.Name] = a.Percent
	}
	return out, nil
}

// GetAppDetails reads a game's store page data. It returns nil, nil when
// the store has no page for appID (delisted or region-locked apps).
// The Store API needs no key, so this works with sync disabled.
func (c *Client) GetAppDetails(ctx context.Context, appID int64) (*AppDetails, error) {
	key := strconv.FormatInt(appID, 10)
	params := url.Values{
		"appids": {key},
		"l":      {"english"},
	}
	var resp appDetailsResponse
	if err := c.do(ctx, "store/appdetails", fmt.Sprintf("%s/appdetails?%s", c.storeURL, params.Encode()), &resp); err != nil {
		return nil, err
	}
	entry, ok := resp[key]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, nil
	}
	return entry.Data, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dst any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	params.Set("key", c.apiKey)
	params.Set("format", "json")
	return c.do(ctx, endpoint, fmt.Sprintf("%s/%s/?%s", c.baseURL, endpoint, params.Encode()), dst)
}

// do runs one rate-limited request through the breaker and decodes the body.
func (c *Client) do(ctx context.Context, endpoint, u string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.fetch(ctx, endpoint, u)
	})
	metrics.SteamRequest(endpoint, err)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", endpoint, err)
	}
	return body, nil
}
