package handlers

import (
	"net/http"
	"strconv"
	"time"

	"apgc/backend/internal/ticketing"

	"github.com/go-chi/chi/v5"
)

const timeLayout = time.RFC3339

// TicketQR serves the ticket's QR image for printing.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	code := ticketing.NormalizeCode(chi.URLParam(r, "code"))
	if _, _, ok := ticketing.ParseCode(code); !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	ticket, err := h.store.GetTicketByCode(ctx, code)
	if err != nil {
		h.handleError(logger, w, "ticket_qr", err)
		return
	}
	png := ticket.QRPNG
	if len(png) == 0 {
		png, err = ticketing.GenerateQRImagePNG(ticket.Code, ticketing.DefaultQRSize)
		if err != nil {
			h.handleError(logger, w, "ticket_qr", err)
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// CancelTicket is the administrative cancellation the gate validator honours.
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	code := ticketing.NormalizeCode(chi.URLParam(r, "code"))

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	ticket, err := h.store.CancelTicket(ctx, code, h.now())
	if err != nil {
		h.handleError(logger, w, "cancel_ticket", err)
		return
	}
	logger.Info("action", "action", "cancel_ticket", "status", "success", "ticket_code", ticket.Code)
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.loggerForRequest(r).Error("healthz", "status", "db_unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "db unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
