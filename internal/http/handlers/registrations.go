package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"apgc/backend/internal/models"
	"apgc/backend/internal/payments"
	"apgc/backend/internal/ticketing"

	"github.com/go-chi/chi/v5"
)

// RegistrationAccessHeader carries the token returned by POST /registrations.
// The same value is accepted as the "access" query parameter.
const RegistrationAccessHeader = "X-Registration-Access"

type createRegistrationRequest struct {
	EventID  int64  `json:"eventId" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Category string `json:"category" validate:"required"`
}

type registrationResponse struct {
	Registration models.Registration `json:"registration"`
	CheckoutURL  string              `json:"checkoutUrl,omitempty"`
	AccessToken  string              `json:"accessToken,omitempty"`
	Error        string              `json:"error,omitempty"`
}

type registrationDetailsResponse struct {
	Registration models.Registration `json:"registration"`
	Event        models.Event        `json:"event"`
	Ticket       *ticketView         `json:"ticket,omitempty"`
}

type ticketView struct {
	Code        string  `json:"code"`
	Status      string  `json:"status"`
	QRURL       string  `json:"qrUrl"`
	CheckedInAt *string `json:"checkedInAt,omitempty"`
}

func (h *Handler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req createRegistrationRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(logger, w, "create_registration", err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	sub, err := h.registrar.Submit(ctx, payments.SubmitRequest{
		EventID:  req.EventID,
		Name:     req.Name,
		Email:    req.Email,
		Category: req.Category,
	})
	if err != nil {
		if errors.Is(err, payments.ErrGatewayUnavailable) && sub.Registration.ID != 0 {
			logger.Warn("action", "action", "create_registration", "status", "invoice_deferred", "registration_id", sub.Registration.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, registrationResponse{
				Registration: sub.Registration,
				AccessToken:  h.accessToken(sub.Registration.ID),
				Error:        "payment gateway unavailable, retry invoice creation",
			})
			return
		}
		h.handleError(logger, w, "create_registration", err)
		return
	}
	logger.Info("action", "action", "create_registration", "status", "success", "registration_id", sub.Registration.ID)
	writeJSON(w, http.StatusCreated, registrationResponse{
		Registration: sub.Registration,
		CheckoutURL:  sub.CheckoutURL,
		AccessToken:  h.accessToken(sub.Registration.ID),
	})
}

func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid registration id")
		return
	}
	if !h.authorizeRegistration(r, id) {
		logger.Warn("action", "action", "get_registration", "status", "access_denied", "registration_id", id)
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	details, err := h.store.GetRegistrationDetails(ctx, id)
	if err != nil {
		h.handleError(logger, w, "get_registration", err)
		return
	}
	resp := registrationDetailsResponse{Registration: details.Registration, Event: details.Event}
	if details.Ticket != nil {
		resp.Ticket = h.ticketView(*details.Ticket)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RetryInvoice opens the invoice for a registration left unpaid by a gateway outage.
func (h *Handler) RetryInvoice(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid registration id")
		return
	}
	if !h.authorizeRegistration(r, id) {
		logger.Warn("action", "action", "retry_invoice", "status", "access_denied", "registration_id", id)
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	sub, err := h.registrar.CreateInvoice(ctx, id)
	if err != nil {
		h.handleError(logger, w, "retry_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{
		Registration: sub.Registration,
		CheckoutURL:  sub.CheckoutURL,
		AccessToken:  h.accessToken(sub.Registration.ID),
	})
}

func (h *Handler) accessToken(registrationID int64) string {
	if h.cfg == nil {
		return ""
	}
	return ticketing.SignRegistrationAccess(h.cfg.JWTSecret, registrationID)
}

// authorizeRegistration checks the registrant's access token. A failed check is
// answered exactly like an unknown id.
func (h *Handler) authorizeRegistration(r *http.Request, registrationID int64) bool {
	if h.cfg == nil {
		return false
	}
	token := r.Header.Get(RegistrationAccessHeader)
	if token == "" {
		token = r.URL.Query().Get("access")
	}
	return ticketing.VerifyRegistrationAccess(h.cfg.JWTSecret, registrationID, token)
}

func (h *Handler) ticketView(t models.Ticket) *ticketView {
	view := &ticketView{Code: t.Code, Status: t.Status, QRURL: t.QRURL}
	if view.QRURL == "" && h.cfg != nil {
		view.QRURL = h.cfg.BaseURL + "/tickets/" + t.Code + "/qr.png"
	}
	if t.CheckedInAt != nil {
		at := t.CheckedInAt.UTC().Format(timeLayout)
		view.CheckedInAt = &at
	}
	return view
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
