package payments

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"apgc/backend/internal/cache"
	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/metrics"
	"apgc/backend/internal/models"
	"apgc/backend/internal/notify"
	"apgc/backend/internal/repository"
	"apgc/backend/internal/ticketing"
)

const (
	OutcomePaid      = "paid"
	OutcomeDuplicate = "duplicate"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
	OutcomeUnchanged = "unchanged"
	OutcomeIgnored   = "ignored"
)

type PaymentStore interface {
	ResolveEvent(ctx context.Context, ref models.EventRef) (models.Event, error)
	ResolveRegistration(ctx context.Context, ref models.RegistrationRef) (models.Registration, error)
	ResolveTicket(ctx context.Context, ref models.TicketRef) (models.Ticket, error)
	MarkPaidAndIssueTicket(ctx context.Context, params repository.PaymentParams, mint repository.MintFunc) (repository.IssueResult, error)
	MarkPaymentTerminal(ctx context.Context, id int64, status string) (models.Registration, bool, error)
	SetTicketQRURL(ctx context.Context, ticketID int64, qrURL string) error
}

type CallbackVerifier interface {
	VerifyCallbackToken(presented string) bool
}

type QRUploader interface {
	UploadTicketQR(ctx context.Context, code string, png []byte) (string, error)
}

type ProcessorConfig struct {
	TicketPrefix  string
	QRSize        int
	NotifyTimeout time.Duration
}

type ProcessorDeps struct {
	Store       PaymentStore
	Verifier    CallbackVerifier
	Sender      notify.Sender
	Invalidator cache.Invalidator
	// Uploader is optional.
	Uploader QRUploader
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Ack is the structured acknowledgement returned for every accepted delivery.
type Ack struct {
	Success        bool             `json:"success"`
	Outcome        string           `json:"outcome"`
	RegistrationID int64            `json:"registrationId,omitempty"`
	PaymentStatus  string           `json:"paymentStatus,omitempty"`
	TicketCode     string           `json:"ticketCode,omitempty"`
	Partial        bool             `json:"partial,omitempty"`
	Notification   *NotificationAck `json:"notification,omitempty"`
}

type NotificationAck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Processor drives registration and ticket state from invoice callbacks.
type Processor struct {
	store       PaymentStore
	verifier    CallbackVerifier
	sender      notify.Sender
	invalidator cache.Invalidator
	uploader    QRUploader
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cfg         ProcessorConfig
	now         func() time.Time
	background  sync.WaitGroup
}

func NewProcessor(cfg ProcessorConfig, deps ProcessorDeps) *Processor {
	if cfg.TicketPrefix == "" {
		cfg.TicketPrefix = "APGC"
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = ticketing.DefaultQRSize
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 20 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	invalidator := deps.Invalidator
	if invalidator == nil {
		invalidator = cache.Nop{}
	}
	return &Processor{
		store:       deps.Store,
		verifier:    deps.Verifier,
		sender:      deps.Sender,
		invalidator: invalidator,
		uploader:    deps.Uploader,
		metrics:     deps.Metrics,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook authenticates, parses and applies one delivery. Business
// outcomes are reported through Ack; only authentication, payload, lookup
// and storage failures are returned as errors.
func (p *Processor) HandleWebhook(ctx context.Context, raw []byte, token string) (Ack, error) {
	if p.verifier == nil || !p.verifier.VerifyCallbackToken(token) {
		p.metrics.WebhookOutcome("unauthorized")
		return Ack{}, ErrUnauthorized
	}
	event, ok := xendit.ParseWebhook(raw)
	if !ok {
		p.metrics.WebhookOutcome("malformed")
		return Ack{}, ErrMalformedPayload
	}
	regID, ok := xendit.ParseExternalID(event.ExternalID)
	if !ok {
		p.metrics.WebhookOutcome("malformed")
		return Ack{}, ErrMalformedPayload
	}
	logger := p.logger.With("registration_id", regID, "invoice_id", event.ID, "status", event.Status)

	reg, err := p.store.ResolveRegistration(ctx, models.RegistrationRef{ID: regID})
	if err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			p.metrics.WebhookOutcome("not_found")
			logger.Warn("webhook_registration_not_found")
			return Ack{}, ErrNotFound
		}
		return Ack{}, p.fail(logger, internalErr("resolve registration", err))
	}

	var ack Ack
	switch {
	case event.IsPaid():
		ack, err = p.handlePaid(ctx, logger, reg, event)
	case event.Status == xendit.StatusExpired:
		ack, err = p.handleTerminal(ctx, logger, reg, models.PaymentStatusExpired)
	case event.Status == xendit.StatusFailed:
		ack, err = p.handleTerminal(ctx, logger, reg, models.PaymentStatusFailed)
	default:
		ack = Ack{Success: true, Outcome: OutcomeIgnored, RegistrationID: reg.ID, PaymentStatus: reg.PaymentStatus}
	}
	if err != nil {
		return Ack{}, p.fail(logger, err)
	}
	p.metrics.WebhookOutcome(ack.Outcome)
	logger.Info("webhook_invoice", "outcome", ack.Outcome, "partial", ack.Partial)
	return ack, nil
}

func (p *Processor) handlePaid(ctx context.Context, logger *slog.Logger, reg models.Registration, event *xendit.WebhookEvent) (Ack, error) {
	if reg.PaymentStatus == models.PaymentStatusPaid {
		return p.duplicateAck(ctx, reg), nil
	}

	eventInfo, err := p.store.ResolveEvent(ctx, reg.Event)
	if err != nil {
		return Ack{}, internalErr("resolve event", err)
	}

	params := repository.PaymentParams{
		RegistrationID: reg.ID,
		InvoiceID:      event.ID,
		AmountPaid:     event.PaidAmount,
	}
	if event.PaidAt != nil {
		params.PaidAt = *event.PaidAt
	} else {
		if event.RawPaidAt != "" {
			logger.Warn("webhook_paid_at_unparsed", "paid_at", event.RawPaidAt)
		}
		params.PaidAt = p.now()
	}

	res, err := p.store.MarkPaidAndIssueTicket(ctx, params, p.mint)
	switch {
	case errors.Is(err, repository.ErrPaymentStateNotAllowed):
		// Funds were captured for a registration that had already expired or
		// failed. Left for manual refund.
		logger.Warn("webhook_paid_after_terminal", "payment_status", res.Registration.PaymentStatus)
		return Ack{Success: true, Outcome: OutcomeIgnored, RegistrationID: reg.ID, PaymentStatus: res.Registration.PaymentStatus}, nil
	case err != nil:
		return Ack{}, internalErr("issue ticket", err)
	case !res.Issued:
		return p.ackFromResult(OutcomeDuplicate, res), nil
	}

	ack := p.ackFromResult(OutcomePaid, res)
	logger.Info("ticket_issued", "ticket_id", res.Ticket.ID, "ticket_code", res.Ticket.Code)

	qrURL := p.uploadQR(ctx, logger, *res.Ticket)
	result := p.deliver(ctx, notify.TicketMessage{
		RegistrationID: res.Registration.ID,
		RecipientEmail: res.Registration.AttendeeEmail,
		AttendeeName:   res.Registration.AttendeeName,
		EventTitle:     eventInfo.Title,
		EventStartsAt:  eventInfo.StartsAt,
		EventLocation:  eventInfo.Location,
		TicketCode:     res.Ticket.Code,
		QRPNG:          res.Ticket.QRPNG,
		QRURL:          qrURL,
	})
	ack.Notification = &NotificationAck{Status: result.Status(), Error: result.ErrorMessage()}
	if !result.Success {
		ack.Partial = true
		logger.Warn("ticket_notification_failed", "ticket_code", res.Ticket.Code, "error", result.Err)
	}

	p.invalidateAsync(ctx, res.Registration.Event.ID)
	return ack, nil
}

func (p *Processor) handleTerminal(ctx context.Context, logger *slog.Logger, reg models.Registration, status string) (Ack, error) {
	updated, changed, err := p.store.MarkPaymentTerminal(ctx, reg.ID, status)
	if err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return Ack{}, ErrNotFound
		}
		return Ack{}, internalErr("mark "+status, err)
	}
	if !changed {
		logger.Info("webhook_status_unchanged", "payment_status", updated.PaymentStatus)
		return Ack{Success: true, Outcome: OutcomeUnchanged, RegistrationID: reg.ID, PaymentStatus: updated.PaymentStatus}, nil
	}
	outcome := OutcomeExpired
	if status == models.PaymentStatusFailed {
		outcome = OutcomeFailed
	}
	return Ack{Success: true, Outcome: outcome, RegistrationID: reg.ID, PaymentStatus: updated.PaymentStatus}, nil
}

func (p *Processor) mint(reg models.Registration) (repository.NewTicket, error) {
	code := ticketing.GenerateCode(p.cfg.TicketPrefix, reg.ID)
	img, err := ticketing.EncodeQR(code, p.cfg.QRSize)
	if err != nil {
		return repository.NewTicket{}, err
	}
	return repository.NewTicket{Code: code, QRPNG: img.PNG}, nil
}

func (p *Processor) duplicateAck(ctx context.Context, reg models.Registration) Ack {
	ack := Ack{Success: true, Outcome: OutcomeDuplicate, RegistrationID: reg.ID, PaymentStatus: reg.PaymentStatus}
	if reg.Ticket == nil {
		return ack
	}
	if ticket, err := p.store.ResolveTicket(ctx, *reg.Ticket); err == nil {
		ack.TicketCode = ticket.Code
	}
	return ack
}

func (p *Processor) ackFromResult(outcome string, res repository.IssueResult) Ack {
	ack := Ack{
		Success:        true,
		Outcome:        outcome,
		RegistrationID: res.Registration.ID,
		PaymentStatus:  res.Registration.PaymentStatus,
	}
	if res.Ticket != nil {
		ack.TicketCode = res.Ticket.Code
	}
	return ack
}

func (p *Processor) uploadQR(ctx context.Context, logger *slog.Logger, ticket models.Ticket) string {
	if p.uploader == nil {
		return ""
	}
	qrURL, err := p.uploader.UploadTicketQR(ctx, ticket.Code, ticket.QRPNG)
	if err != nil {
		logger.Warn("ticket_qr_upload_failed", "ticket_code", ticket.Code, "error", err)
		return ""
	}
	if err := p.store.SetTicketQRURL(ctx, ticket.ID, qrURL); err != nil {
		logger.Warn("ticket_qr_url_save_failed", "ticket_code", ticket.Code, "error", err)
	}
	return qrURL
}

func (p *Processor) deliver(ctx context.Context, msg notify.TicketMessage) notify.Result {
	if p.sender == nil {
		return notify.Result{Err: errors.New("no notification sender configured")}
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.NotifyTimeout)
	defer cancel()
	result := p.sender.Send(sendCtx, msg)
	p.metrics.Notification(result.Status())
	return result
}

// invalidateAsync refreshes cached event views without holding up the response.
func (p *Processor) invalidateAsync(ctx context.Context, eventID int64) {
	bg := context.WithoutCancel(ctx)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := p.invalidator.InvalidateEvent(ctx, eventID); err != nil {
			p.logger.Warn("event_cache_invalidation_failed", "event_id", eventID, "error", err)
		}
	}()
}

// Wait blocks until background work started by HandleWebhook has finished.
func (p *Processor) Wait() {
	p.background.Wait()
}

func (p *Processor) fail(logger *slog.Logger, err error) error {
	p.metrics.WebhookOutcome("error")
	logger.Error("webhook_invoice_failed", "error", err)
	return err
}
