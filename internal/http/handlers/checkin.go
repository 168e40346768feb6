package handlers

import (
	"net/http"

	"apgc/backend/internal/checkin"
	authmw "apgc/backend/internal/http/middleware"
)

type checkinRequest struct {
	TicketCode string `json:"ticketCode" validate:"required"`
	EventID    *int64 `json:"eventId" validate:"omitempty,gt=0"`
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	operator, ok := authmw.OperatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req checkinRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(logger, w, "checkin", err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	verdict, err := h.checkin.Validate(ctx, checkin.Request{
		TicketCode:      req.TicketCode,
		ExpectedEventID: req.EventID,
		Operator:        operator,
	})
	if err != nil {
		h.handleError(logger, w, "checkin", err)
		return
	}
	logger.Info("action", "action", "checkin", "valid", verdict.Valid, "reason", verdict.Reason)
	writeJSON(w, http.StatusOK, verdict)
}
