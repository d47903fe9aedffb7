package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/steam-arena/internal/model"
	"github.com/sakif/steam-arena/internal/service"
)

// UserHandler serves profiles, libraries and per-user sync.
type UserHandler struct {
	users  *service.UserService
	sync   *service.SyncService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, sync *service.SyncService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, sync: sync, logger: logger}
}

// HandleList returns a page of users with stats.
//
// HTTP: GET /api/users?limit=&offset=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleRegister fetches a Steam profile and its library, creating the user
// on first sight.
//
// HTTP: POST /api/users
// REQUEST BODY: {"steamId": "76561197960287930"}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, games, err := h.sync.Register(r.Context(), req.SteamID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  user,
		"games": games,
	})
}

// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: GET /api/users/steam/{steamId}
func (h *UserHandler) HandleGetBySteamID(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetBySteamID(r.Context(), r.PathValue("steamId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/users/{id}/games?sort=playtime|name|recent
func (h *UserHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.users.Games(r.Context(), r.PathValue("id"), r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// HTTP: DELETE /api/users/{id}/games/{gameId}/playtime
func (h *UserHandler) HandleResetPlaytime(w http.ResponseWriter, r *http.Request) {
	if err := h.users.ResetPlaytime(r.Context(), r.PathValue("id"), r.PathValue("gameId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/users/{id}/sync-history?limit=
func (h *UserHandler) HandleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	history, err := h.sync.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleSync runs one sync for the user. kind is profile, games or
// achievements.
//
// HTTP: POST /api/users/{id}/sync/{kind}
func (h *UserHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	kind := model.SyncType(r.PathValue("kind"))
	res, err := h.sync.Sync(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
