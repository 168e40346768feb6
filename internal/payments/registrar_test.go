package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/logging"
	"apgc/backend/internal/models"
	"apgc/backend/internal/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []xendit.InvoiceRequest
	err      error
}

func (g *fakeGateway) CreateInvoice(_ context.Context, in xendit.InvoiceRequest) (xendit.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, in)
	if g.err != nil {
		return xendit.Invoice{}, g.err
	}
	if in.Amount <= 0 {
		return xendit.Invoice{}, xendit.ErrInvalidAmount
	}
	return xendit.Invoice{ID: "inv-" + in.ExternalID, CheckoutURL: "https://checkout.example/" + in.ExternalID}, nil
}

func newRegistrar(t *testing.T, gw *fakeGateway) (*Registrar, *memstore.Store, models.Event) {
	t.Helper()
	store := memstore.New()
	discounted := int64(1500000)
	event := store.AddEvent(models.Event{Title: "Alumni Gala", PriceAmount: 2500000, DiscountCategory: models.CategoryAlumni, DiscountedPrice: &discounted})
	r := NewRegistrar(store, gw, RegistrarConfig{
		Currency:   "IDR",
		SuccessURL: "https://site.example/registrations/{registration_id}/thanks",
	}, nil, logging.Discard())
	return r, store, event
}

func TestSubmitCreatesPendingRegistrationWithCategoryPrice(t *testing.T) {
	gw := &fakeGateway{}
	r, _, event := newRegistrar(t, gw)

	sub, err := r.Submit(context.Background(), SubmitRequest{EventID: event.ID, Name: "Sari", Email: "sari@example.com", Category: "Alumni"})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, sub.Registration.PaymentStatus)
	assert.EqualValues(t, 1500000, sub.Registration.AmountDue)
	assert.Equal(t, "https://checkout.example/reg-1", sub.CheckoutURL)

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	assert.Equal(t, "reg-1", req.ExternalID)
	assert.Equal(t, "IDR", req.Currency)
	assert.EqualValues(t, 1500000, req.Amount)
	assert.Equal(t, "https://site.example/registrations/1/thanks", req.SuccessURL)
}

func TestSubmitValidatesInput(t *testing.T) {
	r, _, event := newRegistrar(t, &fakeGateway{})
	_, err := r.Submit(context.Background(), SubmitRequest{EventID: event.ID, Name: "X", Email: "x@example.com", Category: "staff"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Submit(context.Background(), SubmitRequest{EventID: 999, Name: "X", Email: "x@example.com", Category: "guest"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRejectsFreeEvents(t *testing.T) {
	gw := &fakeGateway{}
	r, store, _ := newRegistrar(t, gw)
	free := store.AddEvent(models.Event{Title: "Open Day"})

	_, err := r.Submit(context.Background(), SubmitRequest{EventID: free.ID, Name: "X", Email: "x@example.com", Category: "guest"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Empty(t, gw.requests)
}

func TestSubmitGatewayDownKeepsRegistrationUnpaidAndRetryReusesExternalID(t *testing.T) {
	gw := &fakeGateway{err: fmt.Errorf("%w: dial tcp: timeout", xendit.ErrGatewayUnavailable)}
	r, store, event := newRegistrar(t, gw)
	ctx := context.Background()

	sub, err := r.Submit(ctx, SubmitRequest{EventID: event.ID, Name: "Budi", Email: "budi@example.com", Category: "guest"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	regID := sub.Registration.ID
	require.NotZero(t, regID)

	reg, err := store.ResolveRegistration(ctx, models.RegistrationRef{ID: regID})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, reg.PaymentStatus)

	gw.err = nil
	retried, err := r.CreateInvoice(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, retried.Registration.PaymentStatus)
	require.Len(t, gw.requests, 2)
	assert.Equal(t, gw.requests[0].ExternalID, gw.requests[1].ExternalID)

	again, err := r.CreateInvoice(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, retried.CheckoutURL, again.CheckoutURL)
	assert.Len(t, gw.requests, 2, "an open invoice is returned without calling the gateway")
}

func TestCreateInvoiceOnPaidRegistrationConflicts(t *testing.T) {
	r, store, event := newRegistrar(t, &fakeGateway{})
	reg := store.PutRegistration(models.Registration{Event: event.Ref(), PaymentStatus: models.PaymentStatusPaid, AmountDue: 1})

	_, err := r.CreateInvoice(context.Background(), reg.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = r.CreateInvoice(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
