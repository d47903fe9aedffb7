package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/steam-arena/internal/service"
)

// PlaytimeHandler serves playtime snapshots and the yearly and monthly
// breakdowns built from them.
type PlaytimeHandler struct {
	playtime *service.PlaytimeService
	logger   *slog.Logger
}

func NewPlaytimeHandler(playtime *service.PlaytimeService, logger *slog.Logger) *PlaytimeHandler {
	return &PlaytimeHandler{playtime: playtime, logger: logger}
}

// HandleSnapshot records a snapshot now, outside the worker's schedule.
//
// HTTP: POST /api/playtime/snapshots
func (h *PlaytimeHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	run, err := h.playtime.Snapshot(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// HTTP: GET /api/playtime/snapshots?limit=
func (h *PlaytimeHandler) HandleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	days, err := h.playtime.SnapshotHistory(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// HTTP: GET /api/users/{id}/playtime/yearly
func (h *PlaytimeHandler) HandleYearly(w http.ResponseWriter, r *http.Request) {
	stats, err := h.playtime.Yearly(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HTTP: GET /api/users/{id}/playtime/monthly?year=
func (h *PlaytimeHandler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	stats, err := h.playtime.Monthly(r.Context(), r.PathValue("id"), year)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
