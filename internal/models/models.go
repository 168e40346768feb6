package models

import "time"

const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusExpired = "expired"
	PaymentStatusFailed  = "failed"
)

const (
	CategoryAlumni = "alumni"
	CategoryGuest  = "guest"
	CategoryMember = "member"
	CategoryVIP    = "vip"
)

// IsTerminalPaymentStatus reports whether no further payment transition is allowed.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPaid, PaymentStatusExpired, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

func IsValidCategory(category string) bool {
	switch category {
	case CategoryAlumni, CategoryGuest, CategoryMember, CategoryVIP:
		return true
	default:
		return false
	}
}

// EventRef is an unresolved pointer to an event.
type EventRef struct {
	ID int64 `json:"id"`
}

// RegistrationRef is an unresolved pointer to a registration.
type RegistrationRef struct {
	ID int64 `json:"id"`
}

// TicketRef is an unresolved pointer to a ticket.
type TicketRef struct {
	ID int64 `json:"id"`
}

// Event represents the read-only catalogue entry a registration points at.
type Event struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	StartsAt         time.Time `json:"startsAt"`
	Location         string    `json:"location,omitempty"`
	PriceAmount      int64     `json:"priceAmount"`
	DiscountCategory string    `json:"discountCategory,omitempty"`
	DiscountedPrice  *int64    `json:"discountedPrice,omitempty"`
}

func (e Event) Ref() EventRef { return EventRef{ID: e.ID} }

// PriceFor returns the amount due for a registrant of the given category.
func (e Event) PriceFor(category string) int64 {
	if e.DiscountedPrice != nil && e.DiscountCategory != "" && e.DiscountCategory == category {
		return *e.DiscountedPrice
	}
	return e.PriceAmount
}

// Registration is one attendee sign-up and its payment state.
type Registration struct {
	ID            int64      `json:"id"`
	Event         EventRef   `json:"event"`
	AttendeeName  string     `json:"attendeeName"`
	AttendeeEmail string     `json:"attendeeEmail"`
	Category      string     `json:"category"`
	PaymentStatus string     `json:"paymentStatus"`
	AmountDue     int64      `json:"amountDue"`
	AmountPaid    *int64     `json:"amountPaid,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	InvoiceID     string     `json:"invoiceId,omitempty"`
	CheckoutURL   string     `json:"checkoutUrl,omitempty"`
	Ticket        *TicketRef `json:"ticket,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (r Registration) Ref() RegistrationRef { return RegistrationRef{ID: r.ID} }
