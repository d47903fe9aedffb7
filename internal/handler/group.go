package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/steam-arena/internal/service"
)

// GroupHandler serves group management and the group aggregations.
type GroupHandler struct {
	groups *service.GroupService
	sync   *service.SyncService
	logger *slog.Logger
}

func NewGroupHandler(groups *service.GroupService, sync *service.SyncService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, sync: sync, logger: logger}
}

// HTTP: POST /api/groups
// REQUEST BODY: {"name": "Friday squad", "description": "co-op nights"}
func (h *GroupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	group, err := h.groups.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// HTTP: GET /api/groups?limit=&offset=
func (h *GroupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	groups, err := h.groups.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// HTTP: GET /api/groups/{id}
func (h *GroupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// HandleUpdate changes name and/or description. Omitted fields are kept.
//
// HTTP: PUT /api/groups/{id}
func (h *GroupHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	group, err := h.groups.Update(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// HTTP: DELETE /api/groups/{id}
func (h *GroupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddMembers adds users to the group. The whole request is rejected
// if any id is unknown.
//
// HTTP: POST /api/groups/{id}/members
// REQUEST BODY: {"userIds": ["...", "..."]}
// RESPONSE: {"members": [...]}, the member set after the change
func (h *GroupHandler) HandleAddMembers(w http.ResponseWriter, r *http.Request) {
	var req addMembersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	members, err := h.groups.AddMembers(r.Context(), r.PathValue("id"), req.UserIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"members": members})
}

// HandleRemoveMember drops one user from the group. Removing a non-member
// succeeds and leaves the set unchanged.
//
// HTTP: DELETE /api/groups/{id}/members/{userId}
func (h *GroupHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	members, err := h.groups.RemoveMember(r.Context(), r.PathValue("id"), r.PathValue("userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"members": members})
}

// HandleIntersection returns every game any member owns, ranked, plus the
// subset owned by all members.
//
// HTTP: GET /api/groups/{id}/intersection
func (h *GroupHandler) HandleIntersection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.groups.Intersection(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntersection(id, in))
}

// HandleGameIntersection returns the top games owned by all members and by
// a majority of them, with ownership percentages.
//
// HTTP: GET /api/groups/{id}/game-intersection
func (h *GroupHandler) HandleGameIntersection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := h.groups.Intersection(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameIntersection(id, in))
}

// HTTP: GET /api/groups/{id}/comparison
func (h *GroupHandler) HandleComparison(w http.ResponseWriter, r *http.Request) {
	group, cmp, err := h.groups.Compare(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groupComparisonResponse{
		Group:      *group,
		Comparison: toComparison(cmp),
	})
}

// HandleSync resyncs every member's library. Per-member failures are
// reported in the body, not as an error status.
//
// HTTP: POST /api/groups/{id}/sync
func (h *GroupHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.sync.SyncGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
