package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"apgc/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const ticketColumns = `id, code, registration_id, event_id, qr_png, qr_url, status,
	checked_in_at, checked_in_by, cancelled_at, created_at`

// ResolveTicket loads the ticket a reference points at.
func (r *Repository) ResolveTicket(ctx context.Context, ref models.TicketRef) (models.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ref.ID)
	out, err := scanTicket(row)
	return out, notFoundOr(err, ErrTicketNotFound)
}

func (r *Repository) GetTicketByCode(ctx context.Context, code string) (models.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE code = $1`, code)
	out, err := scanTicket(row)
	return out, notFoundOr(err, ErrTicketNotFound)
}

// GetTicketDetailsByCode loads a ticket together with its registration and
// event in one round trip for the gate display.
func (r *Repository) GetTicketDetailsByCode(ctx context.Context, code string) (models.TicketDetails, error) {
	var out models.TicketDetails
	var qrURL sql.NullString
	var discountCategory sql.NullString
	err := r.pool.QueryRow(ctx, `
SELECT
	t.id, t.code, t.registration_id, t.event_id, t.qr_url, t.status,
	t.checked_in_at, t.checked_in_by, t.cancelled_at, t.created_at,
	r.id, r.attendee_name, r.attendee_email, r.category, r.payment_status,
	e.id, e.title, e.starts_at, e.location, e.price_amount, e.discount_category, e.discounted_price_amount
FROM tickets t
JOIN registrations r ON r.id = t.registration_id
JOIN events e ON e.id = t.event_id
WHERE t.code = $1`, code).Scan(
		&out.Ticket.ID,
		&out.Ticket.Code,
		&out.Ticket.Registration.ID,
		&out.Ticket.Event.ID,
		&qrURL,
		&out.Ticket.Status,
		&out.Ticket.CheckedInAt,
		&out.Ticket.CheckedInBy,
		&out.Ticket.CancelledAt,
		&out.Ticket.CreatedAt,
		&out.Registration.ID,
		&out.Registration.AttendeeName,
		&out.Registration.AttendeeEmail,
		&out.Registration.Category,
		&out.Registration.PaymentStatus,
		&out.Event.ID,
		&out.Event.Title,
		&out.Event.StartsAt,
		&out.Event.Location,
		&out.Event.PriceAmount,
		&discountCategory,
		&out.Event.DiscountedPrice,
	)
	if err != nil {
		return out, notFoundOr(err, ErrTicketNotFound)
	}
	if qrURL.Valid {
		out.Ticket.QRURL = qrURL.String
	}
	if discountCategory.Valid {
		out.Event.DiscountCategory = discountCategory.String
	}
	out.Registration.Event = out.Event.Ref()
	return out, nil
}

// CheckInTicket moves a pending ticket to checked_in with a single
// conditional write. It reports false when another caller got there first or
// the ticket is no longer pending.
func (r *Repository) CheckInTicket(ctx context.Context, ticketID int64, at time.Time, operator string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE tickets
SET status = 'checked_in',
	checked_in_at = $2,
	checked_in_by = $3
WHERE id = $1 AND status = 'pending'`, ticketID, at, nullString(operator))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// CancelTicket cancels a ticket that has not been used yet.
func (r *Repository) CancelTicket(ctx context.Context, code string, at time.Time) (models.Ticket, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE tickets
SET status = 'cancelled',
	cancelled_at = $2
WHERE code = $1 AND status = 'pending'
RETURNING `+ticketColumns, code, at)
	out, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetTicketByCode(ctx, code); lookupErr != nil {
			return out, lookupErr
		}
		return out, ErrTicketStateNotAllowed
	}
	return out, err
}

func (r *Repository) SetTicketQRURL(ctx context.Context, ticketID int64, qrURL string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET qr_url = $2 WHERE id = $1`, ticketID, qrURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// ReconcileTicketLinks points paid registrations at their active ticket when
// the link is missing or stale. It returns the number of repaired rows.
func (r *Repository) ReconcileTicketLinks(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE registrations r
SET ticket_id = t.id,
	updated_at = now()
FROM tickets t
WHERE t.registration_id = r.id
	AND t.status <> 'cancelled'
	AND r.payment_status = 'paid'
	AND r.ticket_id IS DISTINCT FROM t.id`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var out models.Ticket
	var qrURL sql.NullString
	err := row.Scan(
		&out.ID,
		&out.Code,
		&out.Registration.ID,
		&out.Event.ID,
		&out.QRPNG,
		&qrURL,
		&out.Status,
		&out.CheckedInAt,
		&out.CheckedInBy,
		&out.CancelledAt,
		&out.CreatedAt,
	)
	if qrURL.Valid {
		out.QRURL = qrURL.String
	}
	return out, err
}
