package handlers

import (
	"errors"
	"net/http"

	"apgc/backend/internal/auth"
)

type operatorAuthRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type operatorAuthResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

func (h *Handler) AuthOperator(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req operatorAuthRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(logger, w, "auth_operator", err)
		return
	}

	operator, err := h.operators.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("action", "action", "auth_operator", "status", "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.handleError(logger, w, "auth_operator", err)
		return
	}

	now := h.now()
	ttl := h.cfg.Operator.TokenTTL
	token, err := auth.SignOperatorToken(h.cfg.JWTSecret, operator, ttl, now)
	if err != nil {
		h.handleError(logger, w, "auth_operator", err)
		return
	}
	logger.Info("action", "action", "auth_operator", "status", "success", "operator", operator)
	writeJSON(w, http.StatusOK, operatorAuthResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(ttl).Format(timeLayout),
	})
}
