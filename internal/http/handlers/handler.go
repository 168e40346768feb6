package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"apgc/backend/internal/auth"
	"apgc/backend/internal/checkin"
	"apgc/backend/internal/config"
	authmw "apgc/backend/internal/http/middleware"
	"apgc/backend/internal/metrics"
	"apgc/backend/internal/models"
	"apgc/backend/internal/payments"
	"apgc/backend/internal/ticketing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid json")

// Store is the read and administrative surface the handlers use directly.
type Store interface {
	Ping(ctx context.Context) error
	GetRegistrationDetails(ctx context.Context, id int64) (models.RegistrationDetails, error)
	GetTicketByCode(ctx context.Context, code string) (models.Ticket, error)
	CancelTicket(ctx context.Context, code string, at time.Time) (models.Ticket, error)
	ListStatsRows(ctx context.Context, eventID int64) ([]ticketing.StatsRow, error)
}

type Deps struct {
	Store     Store
	Registrar *payments.Registrar
	Processor *payments.Processor
	Validator *checkin.Validator
	Operators *auth.OperatorAuthenticator
	Metrics   *metrics.Metrics
}

type Handler struct {
	store     Store
	registrar *payments.Registrar
	processor *payments.Processor
	checkin   *checkin.Validator
	operators *auth.OperatorAuthenticator
	metrics   *metrics.Metrics
	cfg       *config.Config
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

func New(deps Deps, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     deps.Store,
		registrar: deps.Registrar,
		processor: deps.Processor,
		checkin:   deps.Validator,
		operators: deps.Operators,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if operator, ok := authmw.OperatorFromContext(r.Context()); ok {
		logger = logger.With("operator", operator)
	}
	return logger
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errInvalidJSON
	}
	return h.validator.Struct(dst)
}
