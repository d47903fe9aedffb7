package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/steam-arena/internal/service"
)

// BacklogHandler serves a user's play queue.
type BacklogHandler struct {
	backlog *service.BacklogService
	logger  *slog.Logger
}

func NewBacklogHandler(backlog *service.BacklogService, logger *slog.Logger) *BacklogHandler {
	return &BacklogHandler{backlog: backlog, logger: logger}
}

// HTTP: GET /api/users/{id}/backlog?status=
func (h *BacklogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.backlog.List(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HTTP: POST /api/users/{id}/backlog
// REQUEST BODY: {"gameId": "...", "status": "playing", "priority": 1, "notes": "..."}
func (h *BacklogHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addBacklogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	entry, err := h.backlog.Add(r.Context(), r.PathValue("id"), req.GameID, service.BacklogInput{
		Status:   req.Status,
		Priority: req.Priority,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HTTP: PUT /api/users/{id}/backlog/{entryId}
func (h *BacklogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateBacklogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	entry, err := h.backlog.Update(r.Context(), r.PathValue("id"), r.PathValue("entryId"), service.BacklogInput{
		Status:   req.Status,
		Priority: req.Priority,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HTTP: DELETE /api/users/{id}/backlog/{entryId}
func (h *BacklogHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.backlog.Remove(r.Context(), r.PathValue("id"), r.PathValue("entryId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
