package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/service"
)

// GameHandler serves the game catalog and its store genres.
type GameHandler struct {
	games  *service.GameService
	sync   *service.SyncService
	logger *slog.Logger
}

func NewGameHandler(games *service.GameService, sync *service.SyncService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, sync: sync, logger: logger}
}

// HTTP: GET /api/games?search=&limit=&offset=
func (h *GameHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	games, err := h.games.List(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// HTTP: GET /api/games/popular?limit=
func (h *GameHandler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	games, err := h.games.Popular(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// HTTP: GET /api/games/most-played?limit=
func (h *GameHandler) HandleMostPlayed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	games, err := h.games.MostPlayed(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// HTTP: GET /api/games/{id}
func (h *GameHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// HTTP: GET /api/games/app/{appId}
func (h *GameHandler) HandleGetByAppID(w http.ResponseWriter, r *http.Request) {
	appID, err := pathAppID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	game, err := h.games.GetByAppID(r.Context(), appID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// HTTP: GET /api/games/{id}/owners
func (h *GameHandler) HandleOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.games.Owners(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, owners)
}

// HandleSyncDetails pulls the game's store page, creating the game if it
// is not in the catalog yet.
//
// HTTP: POST /api/games/app/{appId}/sync
func (h *GameHandler) HandleSyncDetails(w http.ResponseWriter, r *http.Request) {
	appID, err := pathAppID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	detail, err := h.sync.SyncGameDetails(r.Context(), appID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HTTP: GET /api/games/genres
func (h *GameHandler) HandleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.games.Genres(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

// HTTP: GET /api/games/genres/{id}/games?limit=&offset=
func (h *GameHandler) HandleGenreGames(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	games, err := h.games.GamesByGenre(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func pathAppID(r *http.Request) (int64, error) {
	appID, err := strconv.ParseInt(r.PathValue("appId"), 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("appId", "appId must be an integer")
	}
	return appID, nil
}
