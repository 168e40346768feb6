package repository

import (
	"context"

	"apgc/backend/internal/ticketing"
)

// ListStatsRows returns every registration joined with its tickets. eventID 0
// selects all events.
func (r *Repository) ListStatsRows(ctx context.Context, eventID int64) ([]ticketing.StatsRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT r.id, r.event_id, e.title, r.category, r.payment_status,
	COALESCE(r.amount_paid, 0), COALESCE(t.status, '')
FROM registrations r
JOIN events e ON e.id = r.event_id
LEFT JOIN tickets t ON t.registration_id = r.id
WHERE $1::bigint = 0 OR r.event_id = $1
ORDER BY r.id, t.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ticketing.StatsRow
	for rows.Next() {
		var row ticketing.StatsRow
		if err := rows.Scan(
			&row.RegistrationID,
			&row.EventID,
			&row.EventTitle,
			&row.Category,
			&row.PaymentStatus,
			&row.AmountPaid,
			&row.TicketStatus,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
