package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"apgc/backend/internal/ticketing"
)

type statsResponse struct {
	Global ticketing.StatsBucket   `json:"global"`
	Events []ticketing.StatsBucket `json:"events"`
}

// AdminStats reports registrations, revenue and attendance. ?eventId narrows
// it to one event.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var eventID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("eventId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid eventId")
			return
		}
		eventID = parsed
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	rows, err := h.store.ListStatsRows(ctx, eventID)
	if err != nil {
		h.handleError(logger, w, "admin_stats", err)
		return
	}
	global, perEvent := ticketing.AggregateStats(rows)
	resp := statsResponse{Global: global, Events: make([]ticketing.StatsBucket, 0, len(perEvent))}
	for _, bucket := range perEvent {
		resp.Events = append(resp.Events, bucket)
	}
	sort.Slice(resp.Events, func(i, j int) bool { return resp.Events[i].EventID < resp.Events[j].EventID })
	writeJSON(w, http.StatusOK, resp)
}
