package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/metrics"
	"apgc/backend/internal/models"
	"apgc/backend/internal/repository"
)

type RegistrationStore interface {
	ResolveEvent(ctx context.Context, ref models.EventRef) (models.Event, error)
	ResolveRegistration(ctx context.Context, ref models.RegistrationRef) (models.Registration, error)
	CreateRegistration(ctx context.Context, reg models.Registration) (models.Registration, error)
	MarkInvoiced(ctx context.Context, id int64, invoiceID, checkoutURL string) (models.Registration, error)
}

type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, in xendit.InvoiceRequest) (xendit.Invoice, error)
}

type RegistrarConfig struct {
	Currency   string
	SuccessURL string
	FailureURL string
}

// Registrar turns a submission into an unpaid registration and opens its invoice.
type Registrar struct {
	store   RegistrationStore
	gateway InvoiceCreator
	cfg     RegistrarConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type SubmitRequest struct {
	EventID  int64
	Name     string
	Email    string
	Category string
}

type Submission struct {
	Registration models.Registration `json:"registration"`
	CheckoutURL  string              `json:"checkoutUrl,omitempty"`
}

func NewRegistrar(store RegistrationStore, gateway InvoiceCreator, cfg RegistrarConfig, m *metrics.Metrics, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	return &Registrar{store: store, gateway: gateway, cfg: cfg, metrics: m, logger: logger}
}

// Submit creates the registration and its invoice. When the gateway is down
// the registration is kept unpaid and the error is returned; the caller may
// retry with CreateInvoice.
func (r *Registrar) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	var out Submission
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if !models.IsValidCategory(category) || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return out, ErrInvalidInput
	}

	event, err := r.store.ResolveEvent(ctx, models.EventRef{ID: req.EventID})
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return out, ErrNotFound
		}
		return out, internalErr("resolve event", err)
	}
	amount := event.PriceFor(category)
	if amount <= 0 {
		return out, ErrInvalidAmount
	}

	reg, err := r.store.CreateRegistration(ctx, models.Registration{
		Event:         event.Ref(),
		AttendeeName:  strings.TrimSpace(req.Name),
		AttendeeEmail: strings.TrimSpace(req.Email),
		Category:      category,
		AmountDue:     amount,
	})
	if err != nil {
		return out, internalErr("create registration", err)
	}
	r.logger.Info("registration_created", "registration_id", reg.ID, "event_id", event.ID, "category", category, "amount", amount)

	out.Registration = reg
	reg, err = r.openInvoice(ctx, reg, event)
	if err != nil {
		return out, err
	}
	out.Registration = reg
	out.CheckoutURL = reg.CheckoutURL
	return out, nil
}

// CreateInvoice opens (or returns the already open) invoice for an existing
// registration. Retries reuse the same external id.
func (r *Registrar) CreateInvoice(ctx context.Context, registrationID int64) (Submission, error) {
	var out Submission
	reg, err := r.store.ResolveRegistration(ctx, models.RegistrationRef{ID: registrationID})
	if err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return out, ErrNotFound
		}
		return out, internalErr("resolve registration", err)
	}
	out.Registration = reg
	switch {
	case reg.PaymentStatus == models.PaymentStatusPending && reg.CheckoutURL != "":
		out.CheckoutURL = reg.CheckoutURL
		return out, nil
	case models.IsTerminalPaymentStatus(reg.PaymentStatus):
		return out, ErrConflict
	}

	event, err := r.store.ResolveEvent(ctx, reg.Event)
	if err != nil {
		return out, internalErr("resolve event", err)
	}
	reg, err = r.openInvoice(ctx, reg, event)
	if err != nil {
		return out, err
	}
	out.Registration = reg
	out.CheckoutURL = reg.CheckoutURL
	return out, nil
}

func (r *Registrar) openInvoice(ctx context.Context, reg models.Registration, event models.Event) (models.Registration, error) {
	invoice, err := r.gateway.CreateInvoice(ctx, xendit.InvoiceRequest{
		ExternalID:  xendit.ExternalID(reg.ID),
		Amount:      reg.AmountDue,
		Currency:    r.cfg.Currency,
		Description: fmt.Sprintf("%s (%s)", event.Title, reg.Category),
		PayerName:   reg.AttendeeName,
		PayerEmail:  reg.AttendeeEmail,
		SuccessURL:  expandURL(r.cfg.SuccessURL, reg.ID),
		FailureURL:  expandURL(r.cfg.FailureURL, reg.ID),
	})
	if err != nil {
		r.metrics.Invoice("error")
		r.logger.Warn("invoice_create_failed", "registration_id", reg.ID, "error", err)
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrGatewayUnavailable) {
			return reg, err
		}
		return reg, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	r.metrics.Invoice("created")

	updated, err := r.store.MarkInvoiced(ctx, reg.ID, invoice.ID, invoice.CheckoutURL)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentStateNotAllowed) {
			return reg, ErrConflict
		}
		return reg, internalErr("mark invoiced", err)
	}
	r.logger.Info("registration_invoiced", "registration_id", reg.ID, "invoice_id", invoice.ID)
	return updated, nil
}

func expandURL(template string, registrationID int64) string {
	return strings.ReplaceAll(template, "{registration_id}", strconv.FormatInt(registrationID, 10))
}
