// Package memstore is an in-memory registration and ticket store with the same
// conditional-update semantics as the PostgreSQL repository. Services use it
// in tests and in local runs without a database.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apgc/backend/internal/models"
	"apgc/backend/internal/repository"
	"apgc/backend/internal/ticketing"
)

const maxCodeAttempts = 5

type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	failure       error
	nextEventID   int64
	nextRegID     int64
	nextTicketID  int64
	events        map[int64]models.Event
	registrations map[int64]models.Registration
	tickets       map[int64]models.Ticket
	codes         map[string]int64
}

func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		events:        make(map[int64]models.Event),
		registrations: make(map[int64]models.Registration),
		tickets:       make(map[int64]models.Ticket),
		codes:         make(map[string]int64),
	}
}

// SetFailure makes every subsequent call return err until cleared with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) AddEvent(event models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == 0 {
		s.nextEventID++
		event.ID = s.nextEventID
	} else if event.ID > s.nextEventID {
		s.nextEventID = event.ID
	}
	s.events[event.ID] = event
	return event
}

// PutRegistration stores a registration as-is, keeping its id when set.
func (s *Store) PutRegistration(reg models.Registration) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg.ID == 0 {
		s.nextRegID++
		reg.ID = s.nextRegID
	} else if reg.ID > s.nextRegID {
		s.nextRegID = reg.ID
	}
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = models.PaymentStatusUnpaid
	}
	s.registrations[reg.ID] = reg
	return reg
}

// Tickets returns every ticket stored for the registration, cancelled included.
func (s *Store) Tickets(registrationID int64) []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, t := range s.tickets {
		if t.Registration.ID == registrationID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Store) ResolveEvent(ctx context.Context, ref models.EventRef) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Event{}, s.failure
	}
	event, ok := s.events[ref.ID]
	if !ok {
		return models.Event{}, repository.ErrEventNotFound
	}
	return event, nil
}

func (s *Store) ResolveRegistration(ctx context.Context, ref models.RegistrationRef) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Registration{}, s.failure
	}
	reg, ok := s.registrations[ref.ID]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *Store) ResolveTicket(ctx context.Context, ref models.TicketRef) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Ticket{}, s.failure
	}
	t, ok := s.tickets[ref.ID]
	if !ok {
		return models.Ticket{}, repository.ErrTicketNotFound
	}
	return t, nil
}

func (s *Store) GetRegistrationDetails(ctx context.Context, id int64) (models.RegistrationDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out models.RegistrationDetails
	if s.failure != nil {
		return out, s.failure
	}
	reg, ok := s.registrations[id]
	if !ok {
		return out, repository.ErrRegistrationNotFound
	}
	event, ok := s.events[reg.Event.ID]
	if !ok {
		return out, repository.ErrEventNotFound
	}
	out.Registration = reg
	out.Event = event
	if reg.Ticket != nil {
		if t, ok := s.tickets[reg.Ticket.ID]; ok {
			out.Ticket = &t
		}
	}
	return out, nil
}

func (s *Store) CreateRegistration(ctx context.Context, reg models.Registration) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Registration{}, s.failure
	}
	if _, ok := s.events[reg.Event.ID]; !ok {
		return models.Registration{}, repository.ErrEventNotFound
	}
	s.nextRegID++
	now := s.now()
	reg.ID = s.nextRegID
	reg.PaymentStatus = models.PaymentStatusUnpaid
	reg.AmountPaid = nil
	reg.PaidAt = nil
	reg.Ticket = nil
	reg.CreatedAt = now
	reg.UpdatedAt = now
	s.registrations[reg.ID] = reg
	return reg, nil
}

func (s *Store) MarkInvoiced(ctx context.Context, id int64, invoiceID, checkoutURL string) (models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Registration{}, s.failure
	}
	reg, ok := s.registrations[id]
	if !ok {
		return models.Registration{}, repository.ErrRegistrationNotFound
	}
	if reg.PaymentStatus != models.PaymentStatusUnpaid && reg.PaymentStatus != models.PaymentStatusPending {
		return models.Registration{}, repository.ErrPaymentStateNotAllowed
	}
	reg.PaymentStatus = models.PaymentStatusPending
	reg.InvoiceID = invoiceID
	reg.CheckoutURL = checkoutURL
	reg.UpdatedAt = s.now()
	s.registrations[id] = reg
	return reg, nil
}

func (s *Store) MarkPaidAndIssueTicket(ctx context.Context, params repository.PaymentParams, mint repository.MintFunc) (repository.IssueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out repository.IssueResult
	if s.failure != nil {
		return out, s.failure
	}
	reg, ok := s.registrations[params.RegistrationID]
	if !ok {
		return out, repository.ErrRegistrationNotFound
	}
	switch reg.PaymentStatus {
	case models.PaymentStatusPaid:
		out.Registration = reg
		if reg.Ticket != nil {
			if t, ok := s.tickets[reg.Ticket.ID]; ok {
				out.Ticket = &t
			}
		}
		return out, nil
	case models.PaymentStatusExpired, models.PaymentStatusFailed:
		out.Registration = reg
		return out, repository.ErrPaymentStateNotAllowed
	}
	for _, t := range s.tickets {
		if t.Registration.ID == reg.ID && t.Status != models.TicketStatusCancelled {
			return out, fmt.Errorf("registration %d already has an active ticket: %w", reg.ID, repository.ErrTicketStateNotAllowed)
		}
	}

	now := s.now()
	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	amount := reg.AmountDue
	if params.AmountPaid != nil {
		amount = *params.AmountPaid
	}
	reg.PaymentStatus = models.PaymentStatusPaid
	reg.AmountPaid = &amount
	reg.PaidAt = &paidAt
	if params.InvoiceID != "" {
		reg.InvoiceID = params.InvoiceID
	}
	reg.UpdatedAt = now

	var ticket models.Ticket
	issued := false
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		minted, err := mint(reg)
		if err != nil {
			return repository.IssueResult{}, err
		}
		if _, taken := s.codes[minted.Code]; taken {
			continue
		}
		s.nextTicketID++
		ticket = models.Ticket{
			ID:           s.nextTicketID,
			Code:         minted.Code,
			Registration: reg.Ref(),
			Event:        reg.Event,
			QRPNG:        minted.QRPNG,
			Status:       models.TicketStatusPending,
			CreatedAt:    now,
		}
		issued = true
		break
	}
	if !issued {
		return repository.IssueResult{}, repository.ErrTicketCodeExhausted
	}

	s.tickets[ticket.ID] = ticket
	s.codes[ticket.Code] = ticket.ID
	ref := ticket.Ref()
	reg.Ticket = &ref
	s.registrations[reg.ID] = reg

	out.Registration = reg
	out.Ticket = &ticket
	out.Issued = true
	return out, nil
}

func (s *Store) MarkPaymentTerminal(ctx context.Context, id int64, status string) (models.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Registration{}, false, s.failure
	}
	reg, ok := s.registrations[id]
	if !ok {
		return models.Registration{}, false, repository.ErrRegistrationNotFound
	}
	if models.IsTerminalPaymentStatus(reg.PaymentStatus) {
		return reg, false, nil
	}
	reg.PaymentStatus = status
	reg.UpdatedAt = s.now()
	s.registrations[id] = reg
	return reg, true, nil
}

func (s *Store) GetTicketByCode(ctx context.Context, code string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Ticket{}, s.failure
	}
	id, ok := s.codes[code]
	if !ok {
		return models.Ticket{}, repository.ErrTicketNotFound
	}
	return s.tickets[id], nil
}

func (s *Store) GetTicketDetailsByCode(ctx context.Context, code string) (models.TicketDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out models.TicketDetails
	if s.failure != nil {
		return out, s.failure
	}
	id, ok := s.codes[code]
	if !ok {
		return out, repository.ErrTicketNotFound
	}
	out.Ticket = s.tickets[id]
	out.Ticket.QRPNG = nil
	out.Registration = s.registrations[out.Ticket.Registration.ID]
	out.Event = s.events[out.Ticket.Event.ID]
	return out, nil
}

func (s *Store) CheckInTicket(ctx context.Context, ticketID int64, at time.Time, operator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	t, ok := s.tickets[ticketID]
	if !ok || t.Status != models.TicketStatusPending {
		return false, nil
	}
	t.Status = models.TicketStatusCheckedIn
	t.CheckedInAt = &at
	if operator != "" {
		op := operator
		t.CheckedInBy = &op
	}
	s.tickets[ticketID] = t
	return true, nil
}

func (s *Store) CancelTicket(ctx context.Context, code string, at time.Time) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.Ticket{}, s.failure
	}
	id, ok := s.codes[code]
	if !ok {
		return models.Ticket{}, repository.ErrTicketNotFound
	}
	t := s.tickets[id]
	if t.Status != models.TicketStatusPending {
		return models.Ticket{}, repository.ErrTicketStateNotAllowed
	}
	t.Status = models.TicketStatusCancelled
	t.CancelledAt = &at
	s.tickets[id] = t
	return t, nil
}

func (s *Store) SetTicketQRURL(ctx context.Context, ticketID int64, qrURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	t, ok := s.tickets[ticketID]
	if !ok {
		return repository.ErrTicketNotFound
	}
	t.QRURL = qrURL
	s.tickets[ticketID] = t
	return nil
}

func (s *Store) ReconcileTicketLinks(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	var fixed int64
	for _, t := range s.tickets {
		if t.Status == models.TicketStatusCancelled {
			continue
		}
		reg, ok := s.registrations[t.Registration.ID]
		if !ok || reg.PaymentStatus != models.PaymentStatusPaid {
			continue
		}
		if reg.Ticket != nil && reg.Ticket.ID == t.ID {
			continue
		}
		ref := t.Ref()
		reg.Ticket = &ref
		s.registrations[reg.ID] = reg
		fixed++
	}
	return fixed, nil
}

func (s *Store) ListStatsRows(ctx context.Context, eventID int64) ([]ticketing.StatsRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []ticketing.StatsRow
	for _, reg := range s.registrations {
		if eventID != 0 && reg.Event.ID != eventID {
			continue
		}
		base := ticketing.StatsRow{
			RegistrationID: reg.ID,
			EventID:        reg.Event.ID,
			EventTitle:     s.events[reg.Event.ID].Title,
			Category:       reg.Category,
			PaymentStatus:  reg.PaymentStatus,
		}
		if reg.AmountPaid != nil {
			base.AmountPaid = *reg.AmountPaid
		}
		joined := false
		for _, t := range s.tickets {
			if t.Registration.ID != reg.ID {
				continue
			}
			row := base
			row.TicketStatus = t.Status
			out = append(out, row)
			joined = true
		}
		if !joined {
			out = append(out, base)
		}
	}
	return out, nil
}

// Unlink drops the registration's ticket reference, simulating a partially
// applied write from before issuance became transactional.
func (s *Store) Unlink(registrationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registrations[registrationID]
	if !ok {
		return
	}
	reg.Ticket = nil
	s.registrations[registrationID] = reg
}
