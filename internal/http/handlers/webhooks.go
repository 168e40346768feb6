package handlers

import (
	"errors"
	"io"
	"net/http"

	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/payments"
)

// InvoiceWebhook accepts Xendit invoice callbacks. A 2xx tells the gateway to
// stop retrying, so only fully applied or deliberately ignored deliveries get one.
func (h *Handler) InvoiceWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ack, err := h.processor.HandleWebhook(r.Context(), raw, r.Header.Get(xendit.CallbackTokenHeader))
	if err != nil {
		if errors.Is(err, payments.ErrUnauthorized) {
			logger.Warn("webhook_invoice", "status", "unauthorized", "ip", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.handleError(logger, w, "webhook_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
