package models

import "time"

const (
	TicketStatusPending   = "pending"
	TicketStatusCheckedIn = "checked_in"
	TicketStatusCancelled = "cancelled"
)

// Ticket represents an issued ticket. QRPNG is served separately and never
// inlined into JSON responses.
type Ticket struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Registration RegistrationRef `json:"registration"`
	Event        EventRef        `json:"event"`
	QRPNG        []byte          `json:"-"`
	QRURL        string          `json:"qrUrl,omitempty"`
	Status       string          `json:"status"`
	CheckedInAt  *time.Time      `json:"checkedInAt,omitempty"`
	CheckedInBy  *string         `json:"checkedInBy,omitempty"`
	CancelledAt  *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (t Ticket) Ref() TicketRef { return TicketRef{ID: t.ID} }

// RegistrationDetails is a registration resolved together with its event and ticket.
type RegistrationDetails struct {
	Registration Registration `json:"registration"`
	Event        Event        `json:"event"`
	Ticket       *Ticket      `json:"ticket,omitempty"`
}

// TicketDetails is a ticket resolved with its registration and event.
type TicketDetails struct {
	Ticket       Ticket       `json:"ticket"`
	Registration Registration `json:"registration"`
	Event        Event        `json:"event"`
}
