package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"apgc/backend/internal/checkin"
	"apgc/backend/internal/payments"
	"apgc/backend/internal/repository"

	"github.com/go-playground/validator/v10"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps service and store errors onto HTTP statuses.
func (h *Handler) handleError(logger *slog.Logger, w http.ResponseWriter, action string, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, errInvalidJSON):
		logger.Warn("action", "action", action, "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
	case errors.As(err, &validationErrs), errors.Is(err, payments.ErrInvalidInput):
		logger.Warn("action", "action", action, "status", "invalid_input", "error", err)
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, payments.ErrMalformedPayload):
		logger.Warn("action", "action", action, "status", "malformed_payload")
		writeError(w, http.StatusBadRequest, "malformed payload")
	case errors.Is(err, payments.ErrUnauthorized):
		logger.Warn("action", "action", action, "status", "unauthorized")
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, payments.ErrNotFound),
		errors.Is(err, repository.ErrRegistrationNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrEventNotFound):
		logger.Info("action", "action", action, "status", "not_found")
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, payments.ErrConflict), errors.Is(err, repository.ErrTicketStateNotAllowed):
		logger.Info("action", "action", action, "status", "conflict")
		writeError(w, http.StatusConflict, "state does not allow this action")
	case errors.Is(err, payments.ErrInvalidAmount):
		logger.Warn("action", "action", action, "status", "invalid_amount")
		writeError(w, http.StatusUnprocessableEntity, "event has no payable price")
	case errors.Is(err, payments.ErrGatewayUnavailable):
		logger.Error("action", "action", action, "status", "gateway_unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	case errors.Is(err, checkin.ErrInternal):
		logger.Error("action", "action", action, "status", "unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "check-in temporarily unavailable")
	default:
		logger.Error("action", "action", action, "status", "internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
