package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/steam-arena/internal/apperror"
	"github.com/sakif/steam-arena/internal/service"
)

// CompareHandler serves ad-hoc user comparisons.
type CompareHandler struct {
	compare *service.CompareService
	logger  *slog.Logger
}

func NewCompareHandler(compare *service.CompareService, logger *slog.Logger) *CompareHandler {
	return &CompareHandler{compare: compare, logger: logger}
}

// HandleCompare compares 2 to 5 users.
//
// HTTP: GET /api/compare?userIds=a,b,c
// The parameter may also be repeated: ?userIds=a&userIds=b
func (h *CompareHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["userIds"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	if len(ids) == 0 {
		writeError(w, h.logger, apperror.ValidationFailed("userIds", "userIds is required"))
		return
	}
	cmp, err := h.compare.Compare(r.Context(), ids)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toComparison(cmp))
}

// DashboardHandler serves the global and per-user dashboards.
type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *slog.Logger
}

func NewDashboardHandler(dashboard *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// HTTP: GET /api/dashboard/stats
func (h *DashboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.GlobalStats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HTTP: GET /api/dashboard/users/{id}
func (h *DashboardHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	dash, err := h.dashboard.UserDashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// HTTP: GET /api/dashboard/users/{id}/playtime-by-genre
func (h *DashboardHandler) HandlePlaytimeByGenre(w http.ResponseWriter, r *http.Request) {
	rows, err := h.dashboard.PlaytimeByGenre(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
