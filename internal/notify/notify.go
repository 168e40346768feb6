package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

const (
	StatusSent   = "sent"
	StatusQueued = "queued"
	StatusFailed = "failed"
)

var ErrInvalidRecipient = errors.New("invalid recipient address")

// TicketMessage is everything needed to tell an attendee about their ticket.
type TicketMessage struct {
	RegistrationID int64     `json:"registrationId"`
	RecipientEmail string    `json:"recipientEmail"`
	AttendeeName   string    `json:"attendeeName"`
	EventTitle     string    `json:"eventTitle"`
	EventStartsAt  time.Time `json:"eventStartsAt"`
	EventLocation  string    `json:"eventLocation,omitempty"`
	TicketCode     string    `json:"ticketCode"`
	QRPNG          []byte    `json:"qrPng,omitempty"`
	QRURL          string    `json:"qrUrl,omitempty"`
}

// Result reports the outcome of a delivery attempt. Senders never return
// errors out of band; a failure is a Result with Success false.
type Result struct {
	Success bool
	Queued  bool
	Err     error
}

func (r Result) Status() string {
	switch {
	case r.Queued:
		return StatusQueued
	case r.Success:
		return StatusSent
	default:
		return StatusFailed
	}
}

func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Sender interface {
	Send(ctx context.Context, msg TicketMessage) Result
}

func failed(err error) Result { return Result{Err: err} }

// NormalizeAddress lower-cases the domain and converts it to its ASCII form
// so internationalised domains survive SMTP.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", ErrInvalidRecipient
	}
	local, domain := addr[:at], addr[at+1:]
	if strings.ContainsAny(local, " \r\n<>") {
		return "", ErrInvalidRecipient
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(domain))
	if err != nil {
		return "", ErrInvalidRecipient
	}
	return local + "@" + ascii, nil
}
