package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"apgc/backend/internal/metrics"
	"apgc/backend/internal/models"
	"apgc/backend/internal/repository"
	"apgc/backend/internal/ticketing"
)

const (
	ReasonTicketNotFound   = "TicketNotFound"
	ReasonWrongEvent       = "WrongEvent"
	ReasonCancelled        = "Cancelled"
	ReasonAlreadyCheckedIn = "AlreadyCheckedIn"
)

// ErrInternal marks a storage failure. Scanners show it as a transient error,
// never as a rejection.
var ErrInternal = errors.New("check-in unavailable")

type Store interface {
	GetTicketDetailsByCode(ctx context.Context, code string) (models.TicketDetails, error)
	CheckInTicket(ctx context.Context, ticketID int64, at time.Time, operator string) (bool, error)
}

type Request struct {
	TicketCode      string
	ExpectedEventID *int64
	Operator        string
}

type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
}

type EventInfo struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Verdict is the scanner-facing answer. Rejections are verdicts, not errors.
type Verdict struct {
	Valid       bool       `json:"valid"`
	Reason      string     `json:"reason,omitempty"`
	Attendee    *Attendee  `json:"attendee,omitempty"`
	Event       *EventInfo `json:"event,omitempty"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
}

type Validator struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewValidator(store Store, m *metrics.Metrics, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (v *Validator) Validate(ctx context.Context, req Request) (Verdict, error) {
	code := ticketing.NormalizeCode(req.TicketCode)
	if _, _, ok := ticketing.ParseCode(code); !ok {
		return v.reject(ReasonTicketNotFound, nil), nil
	}

	details, err := v.store.GetTicketDetailsByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return v.reject(ReasonTicketNotFound, nil), nil
		}
		return Verdict{}, v.fail(code, err)
	}

	if req.ExpectedEventID != nil && *req.ExpectedEventID != details.Ticket.Event.ID {
		verdict := v.reject(ReasonWrongEvent, nil)
		verdict.Event = eventInfo(details.Event)
		return verdict, nil
	}
	if verdict, done := v.terminalVerdict(details); done {
		return verdict, nil
	}

	at := v.now()
	ok, err := v.store.CheckInTicket(ctx, details.Ticket.ID, at, strings.TrimSpace(req.Operator))
	if err != nil {
		return Verdict{}, v.fail(code, err)
	}
	if !ok {
		// Lost the race; report what the winner left behind.
		current, err := v.store.GetTicketDetailsByCode(ctx, code)
		if err != nil {
			return Verdict{}, v.fail(code, err)
		}
		if verdict, done := v.terminalVerdict(current); done {
			return verdict, nil
		}
		return Verdict{}, v.fail(code, fmt.Errorf("ticket %d still pending after conditional update", current.Ticket.ID))
	}

	v.metrics.CheckInVerdict("valid")
	v.logger.Info("ticket_checked_in", "ticket_code", code, "operator", req.Operator, "event_id", details.Event.ID)
	return Verdict{
		Valid: true,
		Attendee: &Attendee{
			Name:     details.Registration.AttendeeName,
			Email:    details.Registration.AttendeeEmail,
			Category: details.Registration.Category,
		},
		Event:       eventInfo(details.Event),
		CheckedInAt: &at,
	}, nil
}

func (v *Validator) terminalVerdict(details models.TicketDetails) (Verdict, bool) {
	switch details.Ticket.Status {
	case models.TicketStatusCancelled:
		return v.reject(ReasonCancelled, nil), true
	case models.TicketStatusCheckedIn:
		return v.reject(ReasonAlreadyCheckedIn, details.Ticket.CheckedInAt), true
	default:
		return Verdict{}, false
	}
}

func (v *Validator) reject(reason string, checkedInAt *time.Time) Verdict {
	v.metrics.CheckInVerdict(reason)
	return Verdict{Valid: false, Reason: reason, CheckedInAt: checkedInAt}
}

func (v *Validator) fail(code string, err error) error {
	v.metrics.CheckInVerdict("error")
	v.logger.Error("checkin_failed", "ticket_code", code, "error", err)
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

func eventInfo(e models.Event) *EventInfo {
	return &EventInfo{ID: e.ID, Name: e.Title, Date: e.StartsAt}
}
