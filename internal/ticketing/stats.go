package ticketing

import "apgc/backend/internal/models"

// StatsRow is one registration joined with one of its tickets. A registration
// without a ticket appears once with an empty TicketStatus.
type StatsRow struct {
	RegistrationID int64
	EventID        int64
	EventTitle     string
	Category       string
	PaymentStatus  string
	AmountPaid     int64
	TicketStatus   string
}

// StatsBucket represents attendance figures for one event, or all of them.
type StatsBucket struct {
	EventID             int64            `json:"eventId,omitempty"`
	EventTitle          string           `json:"eventTitle,omitempty"`
	Registrations       int64            `json:"registrations"`
	PaidAmount          int64            `json:"paidAmount"`
	PaymentStatusCounts map[string]int64 `json:"paymentStatusCounts"`
	PaidCategoryCounts  map[string]int64 `json:"paidCategoryCounts"`
	TicketsIssued       int64            `json:"ticketsIssued"`
	CheckedIn           int64            `json:"checkedIn"`
	Cancelled           int64            `json:"cancelled"`
}

func NewStatsBucket(eventID int64, title string) StatsBucket {
	return StatsBucket{
		EventID:    eventID,
		EventTitle: title,
		PaymentStatusCounts: map[string]int64{
			models.PaymentStatusUnpaid:  0,
			models.PaymentStatusPending: 0,
			models.PaymentStatusPaid:    0,
			models.PaymentStatusExpired: 0,
			models.PaymentStatusFailed:  0,
		},
		PaidCategoryCounts: map[string]int64{
			models.CategoryAlumni: 0,
			models.CategoryGuest:  0,
			models.CategoryMember: 0,
			models.CategoryVIP:    0,
		},
	}
}

// AggregateStats folds joined rows into a global bucket and one per event.
func AggregateStats(rows []StatsRow) (StatsBucket, map[int64]StatsBucket) {
	global := NewStatsBucket(0, "")
	perEvent := map[int64]StatsBucket{}
	seenRegistration := map[int64]struct{}{}
	for _, row := range rows {
		if row.EventID <= 0 || row.RegistrationID <= 0 {
			continue
		}
		bucket, ok := perEvent[row.EventID]
		if !ok {
			bucket = NewStatsBucket(row.EventID, row.EventTitle)
		}
		if bucket.EventTitle == "" && row.EventTitle != "" {
			bucket.EventTitle = row.EventTitle
		}

		// Registration figures count once even when it joined several tickets.
		if _, seen := seenRegistration[row.RegistrationID]; !seen {
			seenRegistration[row.RegistrationID] = struct{}{}
			addRegistration(&bucket, row)
			addRegistration(&global, row)
		}
		addTicket(&bucket, row.TicketStatus)
		addTicket(&global, row.TicketStatus)

		perEvent[row.EventID] = bucket
	}
	return global, perEvent
}

func addRegistration(b *StatsBucket, row StatsRow) {
	b.Registrations++
	if _, known := b.PaymentStatusCounts[row.PaymentStatus]; known {
		b.PaymentStatusCounts[row.PaymentStatus]++
	}
	if row.PaymentStatus != models.PaymentStatusPaid {
		return
	}
	b.PaidAmount += row.AmountPaid
	if _, known := b.PaidCategoryCounts[row.Category]; known {
		b.PaidCategoryCounts[row.Category]++
	}
}

func addTicket(b *StatsBucket, status string) {
	switch status {
	case models.TicketStatusPending:
		b.TicketsIssued++
	case models.TicketStatusCheckedIn:
		b.TicketsIssued++
		b.CheckedIn++
	case models.TicketStatusCancelled:
		b.Cancelled++
	}
}
