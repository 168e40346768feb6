package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"apgc/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const maxCodeAttempts = 5

const registrationColumns = `id, event_id, attendee_name, attendee_email, category, payment_status,
	amount_due, amount_paid, paid_at, invoice_id, checkout_url, ticket_id, created_at, updated_at`

// PaymentParams carries the data of a confirmed payment.
type PaymentParams struct {
	RegistrationID int64
	InvoiceID      string
	AmountPaid     *int64
	PaidAt         time.Time
}

// NewTicket is the material minted for a ticket before it is stored.
type NewTicket struct {
	Code  string
	QRPNG []byte
}

// MintFunc produces a fresh code and QR for the registration. It is called
// again when the previous code collided.
type MintFunc func(reg models.Registration) (NewTicket, error)

type IssueResult struct {
	Registration models.Registration
	Ticket       *models.Ticket
	// Issued is false when the registration had already been paid.
	Issued bool
}

func (r *Repository) CreateRegistration(ctx context.Context, reg models.Registration) (models.Registration, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO registrations (event_id, attendee_name, attendee_email, category, payment_status, amount_due)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+registrationColumns,
		reg.Event.ID, reg.AttendeeName, reg.AttendeeEmail, reg.Category, models.PaymentStatusUnpaid, reg.AmountDue)
	return scanRegistration(row)
}

// ResolveRegistration loads the registration a reference points at.
func (r *Repository) ResolveRegistration(ctx context.Context, ref models.RegistrationRef) (models.Registration, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, ref.ID)
	out, err := scanRegistration(row)
	return out, notFoundOr(err, ErrRegistrationNotFound)
}

// GetRegistrationDetails resolves a registration with its event and active ticket.
func (r *Repository) GetRegistrationDetails(ctx context.Context, id int64) (models.RegistrationDetails, error) {
	var out models.RegistrationDetails
	reg, err := r.ResolveRegistration(ctx, models.RegistrationRef{ID: id})
	if err != nil {
		return out, err
	}
	event, err := r.ResolveEvent(ctx, reg.Event)
	if err != nil {
		return out, err
	}
	out.Registration = reg
	out.Event = event
	if reg.Ticket != nil {
		ticket, err := r.ResolveTicket(ctx, *reg.Ticket)
		if err != nil {
			return out, err
		}
		out.Ticket = &ticket
	}
	return out, nil
}

// MarkInvoiced stores the hosted invoice and moves unpaid to pending. Calling
// it again on a pending registration refreshes the invoice fields.
func (r *Repository) MarkInvoiced(ctx context.Context, id int64, invoiceID, checkoutURL string) (models.Registration, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE registrations
SET payment_status = 'pending',
	invoice_id = $2,
	checkout_url = $3,
	updated_at = now()
WHERE id = $1 AND payment_status IN ('unpaid', 'pending')
RETURNING `+registrationColumns, id, invoiceID, checkoutURL)
	out, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.ResolveRegistration(ctx, models.RegistrationRef{ID: id}); lookupErr != nil {
			return out, lookupErr
		}
		return out, ErrPaymentStateNotAllowed
	}
	return out, err
}

// MarkPaidAndIssueTicket records the payment, mints one ticket and links it
// back to the registration inside a single transaction. The registration row
// is locked for the duration so concurrent deliveries serialize here.
func (r *Repository) MarkPaidAndIssueTicket(ctx context.Context, params PaymentParams, mint MintFunc) (IssueResult, error) {
	var out IssueResult
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		reg, err := scanRegistration(tx.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, params.RegistrationID))
		if err != nil {
			return notFoundOr(err, ErrRegistrationNotFound)
		}
		switch reg.PaymentStatus {
		case models.PaymentStatusPaid:
			out.Registration = reg
			if reg.Ticket != nil {
				ticket, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, reg.Ticket.ID))
				if err != nil {
					return notFoundOr(err, ErrTicketNotFound)
				}
				out.Ticket = &ticket
			}
			return nil
		case models.PaymentStatusExpired, models.PaymentStatusFailed:
			out.Registration = reg
			return ErrPaymentStateNotAllowed
		}

		amount := reg.AmountDue
		if params.AmountPaid != nil {
			amount = *params.AmountPaid
		}
		paidAt := params.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		reg, err = scanRegistration(tx.QueryRow(ctx, `
UPDATE registrations
SET payment_status = 'paid',
	amount_paid = $2,
	paid_at = $3,
	invoice_id = COALESCE($4, invoice_id),
	updated_at = now()
WHERE id = $1
RETURNING `+registrationColumns, reg.ID, amount, paidAt, nullString(params.InvoiceID)))
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}

		ticket, err := insertTicketWithRetry(ctx, tx, reg, mint)
		if err != nil {
			return err
		}

		reg, err = scanRegistration(tx.QueryRow(ctx, `
UPDATE registrations
SET ticket_id = $2,
	updated_at = now()
WHERE id = $1
RETURNING `+registrationColumns, reg.ID, ticket.ID))
		if err != nil {
			return fmt.Errorf("link ticket: %w", err)
		}

		out.Registration = reg
		out.Ticket = &ticket
		out.Issued = true
		return nil
	})
	return out, err
}

func insertTicketWithRetry(ctx context.Context, tx pgx.Tx, reg models.Registration, mint MintFunc) (models.Ticket, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		minted, err := mint(reg)
		if err != nil {
			return models.Ticket{}, err
		}
		// Savepoint so a code collision does not abort the outer transaction.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return models.Ticket{}, err
		}
		ticket, err := scanTicket(sp.QueryRow(ctx, `
INSERT INTO tickets (code, registration_id, event_id, qr_png, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING `+ticketColumns, minted.Code, reg.ID, reg.Event.ID, minted.QRPNG))
		if err != nil {
			_ = sp.Rollback(ctx)
			if isUniqueViolation(err, "tickets_code_key") {
				continue
			}
			if isUniqueViolation(err, "tickets_one_active_per_registration") {
				return models.Ticket{}, fmt.Errorf("registration %d already has an active ticket: %w", reg.ID, ErrTicketStateNotAllowed)
			}
			return models.Ticket{}, fmt.Errorf("insert ticket: %w", err)
		}
		if err := sp.Commit(ctx); err != nil {
			return models.Ticket{}, err
		}
		return ticket, nil
	}
	return models.Ticket{}, ErrTicketCodeExhausted
}

// MarkPaymentTerminal moves a non-terminal registration to expired or failed.
// The boolean reports whether the row changed.
func (r *Repository) MarkPaymentTerminal(ctx context.Context, id int64, status string) (models.Registration, bool, error) {
	if status != models.PaymentStatusExpired && status != models.PaymentStatusFailed {
		return models.Registration{}, false, fmt.Errorf("unsupported terminal status %q", status)
	}
	row := r.pool.QueryRow(ctx, `
UPDATE registrations
SET payment_status = $2,
	updated_at = now()
WHERE id = $1 AND payment_status IN ('unpaid', 'pending')
RETURNING `+registrationColumns, id, status)
	out, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, lookupErr := r.ResolveRegistration(ctx, models.RegistrationRef{ID: id})
		return current, false, lookupErr
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

func scanRegistration(row pgx.Row) (models.Registration, error) {
	var out models.Registration
	var invoiceID sql.NullString
	var checkoutURL sql.NullString
	var ticketID *int64
	err := row.Scan(
		&out.ID,
		&out.Event.ID,
		&out.AttendeeName,
		&out.AttendeeEmail,
		&out.Category,
		&out.PaymentStatus,
		&out.AmountDue,
		&out.AmountPaid,
		&out.PaidAt,
		&invoiceID,
		&checkoutURL,
		&ticketID,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if invoiceID.Valid {
		out.InvoiceID = invoiceID.String
	}
	if checkoutURL.Valid {
		out.CheckoutURL = checkoutURL.String
	}
	if ticketID != nil {
		out.Ticket = &models.TicketRef{ID: *ticketID}
	}
	return out, err
}
