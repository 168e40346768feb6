package handlers

import (
	"apgc/backend/internal/http/middleware"
	"apgc/backend/internal/rate"

	"github.com/go-chi/chi/v5"
)

// Register mounts every API route on r. Global middleware is the caller's.
func (h *Handler) Register(r chi.Router, scanLimiter *rate.KeyedLimiter) {
	r.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		r.Method("GET", "/metrics", h.metrics.Handler())
	}

	r.Post("/registrations", h.CreateRegistration)
	r.Get("/registrations/{id}", h.GetRegistration)
	r.Post("/registrations/{id}/invoice", h.RetryInvoice)
	r.Get("/tickets/{code}/qr.png", h.TicketQR)
	r.Post("/webhooks/invoice", h.InvoiceWebhook)
	r.Post("/auth/operator", h.AuthOperator)

	r.Group(func(r chi.Router) {
		r.Use(middleware.OperatorAuth(h.cfg.JWTSecret))
		r.With(middleware.ScanThrottle(scanLimiter)).Post("/checkin", h.CheckIn)
		r.Post("/admin/tickets/{code}/cancel", h.CancelTicket)
		r.Get("/admin/stats", h.AdminStats)
		r.Post("/scanner/logs", h.ScannerLogs)
	})
}
