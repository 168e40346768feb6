package xendit

import (
	"crypto/subtle"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	CallbackTokenHeader = "X-Callback-Token"

	StatusPaid    = "PAID"
	StatusSettled = "SETTLED"
	StatusExpired = "EXPIRED"
	StatusFailed  = "FAILED"

	externalIDPrefix = "reg-"
)

// maxPaidAmount is 2^63 as a float64. Anything at or above it cannot be stored.
const maxPaidAmount = float64(math.MaxInt64)

// WebhookEvent is an invoice callback after required-field validation.
type WebhookEvent struct {
	ID            string
	ExternalID    string
	Status        string
	PaidAmount    *int64
	PaidAt        *time.Time
	PaymentMethod string
	RawPaidAt     string // paid_at as sent, when it was not RFC 3339
}

type webhookPayload struct {
	ID            string   `json:"id"`
	ExternalID    string   `json:"external_id"`
	Status        string   `json:"status"`
	PaidAmount    *float64 `json:"paid_amount"`
	PaidAt        string   `json:"paid_at"`
	PaymentMethod string   `json:"payment_method"`
}

// VerifyCallbackToken compares the presented token with the configured one in
// constant time. With no configured token every callback is rejected.
func (c *Client) VerifyCallbackToken(presented string) bool {
	if c == nil {
		return false
	}
	return VerifyToken(c.callbackToken, presented)
}

func VerifyToken(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// ParseWebhook decodes a callback body. Malformed input yields (nil, false).
func ParseWebhook(raw []byte) (*WebhookEvent, bool) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	payload.ID = strings.TrimSpace(payload.ID)
	payload.ExternalID = strings.TrimSpace(payload.ExternalID)
	payload.Status = strings.ToUpper(strings.TrimSpace(payload.Status))
	if payload.ID == "" || payload.ExternalID == "" || payload.Status == "" {
		return nil, false
	}

	event := &WebhookEvent{
		ID:            payload.ID,
		ExternalID:    payload.ExternalID,
		Status:        payload.Status,
		PaymentMethod: payload.PaymentMethod,
	}
	if payload.PaidAmount != nil {
		amount := *payload.PaidAmount
		if math.IsNaN(amount) || amount < 0 || amount >= maxPaidAmount {
			return nil, false
		}
		rounded := int64(math.Round(amount))
		event.PaidAmount = &rounded
	}
	if payload.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, payload.PaidAt); err == nil {
			paidAt = paidAt.UTC()
			event.PaidAt = &paidAt
		} else {
			event.RawPaidAt = payload.PaidAt
		}
	}
	return event, true
}

// IsPaid treats SETTLED the same as PAID; both mean funds were captured.
func (e *WebhookEvent) IsPaid() bool {
	return e.Status == StatusPaid || e.Status == StatusSettled
}

func ExternalID(registrationID int64) string {
	return externalIDPrefix + strconv.FormatInt(registrationID, 10)
}

func ParseExternalID(externalID string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(externalID), externalIDPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
