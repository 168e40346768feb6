package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"apgc/backend/internal/auth"
	"apgc/backend/internal/checkin"
	"apgc/backend/internal/config"
	"apgc/backend/internal/integrations/xendit"
	"apgc/backend/internal/logging"
	"apgc/backend/internal/models"
	"apgc/backend/internal/notify"
	"apgc/backend/internal/payments"
	"apgc/backend/internal/rate"
	"apgc/backend/internal/repository/memstore"

	"github.com/go-chi/chi/v5"
)

const (
	testSecret        = "test-secret"
	testCallbackToken = "cb-token"
)

type stubGateway struct {
	mu   sync.Mutex
	down bool
}

func (g *stubGateway) CreateInvoice(_ context.Context, in xendit.InvoiceRequest) (xendit.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return xendit.Invoice{}, fmt.Errorf("%w: dial tcp: connection refused", xendit.ErrGatewayUnavailable)
	}
	return xendit.Invoice{ID: "inv-" + in.ExternalID, CheckoutURL: "https://checkout.xendit.example/" + in.ExternalID}, nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []notify.TicketMessage
}

func (s *recordingSender) Send(_ context.Context, msg notify.TicketMessage) notify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return notify.Result{Success: true}
}

type testServer struct {
	router    http.Handler
	handler   *Handler
	store     *memstore.Store
	gateway   *stubGateway
	sender    *recordingSender
	processor *payments.Processor
	event     models.Event
	other     models.Event
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := auth.HashPassword("gate-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:    testSecret,
		BaseURL:      "https://tickets.example",
		TicketPrefix: "APGC",
		Operator:     config.OperatorConfig{Login: "gate-1", PasswordHash: hash, TokenTTL: time.Hour},
	}
	logger := logging.Discard()
	store := memstore.New()
	ts := &testServer{store: store, gateway: &stubGateway{}, sender: &recordingSender{}}
	ts.event = store.AddEvent(models.Event{Title: "Alumni Gala", StartsAt: time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC), PriceAmount: 2500000})
	ts.other = store.AddEvent(models.Event{Title: "Homecoming", PriceAmount: 100000})

	ts.processor = payments.NewProcessor(payments.ProcessorConfig{TicketPrefix: "APGC", QRSize: 128}, payments.ProcessorDeps{
		Store:    store,
		Verifier: xendit.NewClient(xendit.Config{CallbackToken: testCallbackToken}, nil, logger),
		Sender:   ts.sender,
		Logger:   logger,
	})
	h := New(Deps{
		Store:     store,
		Registrar: payments.NewRegistrar(store, ts.gateway, payments.RegistrarConfig{Currency: "IDR"}, nil, logger),
		Processor: ts.processor,
		Validator: checkin.NewValidator(store, nil, logger),
		Operators: auth.NewOperatorAuthenticator(cfg.Operator.Login, cfg.Operator.PasswordHash),
	}, cfg, logger)

	r := chi.NewRouter()
	h.Register(r, rate.NewKeyedLimiter(1000, 1000))
	ts.router = r
	ts.handler = h
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func (ts *testServer) operatorToken(t *testing.T) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/auth/operator", map[string]string{"username": "gate-1", "password": "gate-pass"}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("operator login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out operatorAuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out.AccessToken
}

func (ts *testServer) payWebhook(t *testing.T, regID int64) *httptest.ResponseRecorder {
	t.Helper()
	payload := fmt.Sprintf(`{"id":"inv-reg-%d","external_id":"reg-%d","status":"PAID","paid_amount":2500000,"paid_at":"2026-03-01T10:00:00Z"}`, regID, regID)
	resp := ts.do(t, http.MethodPost, "/webhooks/invoice", payload, map[string]string{xendit.CallbackTokenHeader: testCallbackToken})
	ts.processor.Wait()
	return resp
}

func decodeMap(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestRegistrationToCheckInFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/registrations", map[string]interface{}{
		"eventId": ts.event.ID, "name": "Budi", "email": "budi@example.com", "category": "alumni",
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create registration: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created registrationResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	regID := created.Registration.ID
	if created.CheckoutURL != fmt.Sprintf("https://checkout.xendit.example/reg-%d", regID) {
		t.Fatalf("unexpected checkout url %q", created.CheckoutURL)
	}

	resp = ts.payWebhook(t, regID)
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	ack := decodeMap(t, resp)
	if ack["outcome"] != payments.OutcomePaid {
		t.Fatalf("expected paid outcome, got %v", ack["outcome"])
	}
	code, _ := ack["ticketCode"].(string)
	if !strings.HasPrefix(code, fmt.Sprintf("APGC-%d-", regID)) {
		t.Fatalf("unexpected ticket code %q", code)
	}

	if created.AccessToken == "" {
		t.Fatalf("expected access token in creation response")
	}
	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/registrations/%d", regID), nil,
		map[string]string{RegistrationAccessHeader: created.AccessToken})
	if resp.Code != http.StatusOK {
		t.Fatalf("get registration: expected 200, got %d", resp.Code)
	}
	var details registrationDetailsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Registration.PaymentStatus != models.PaymentStatusPaid || details.Ticket == nil || details.Ticket.Code != code {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Ticket.QRURL != "https://tickets.example/tickets/"+code+"/qr.png" {
		t.Fatalf("unexpected qr url %q", details.Ticket.QRURL)
	}

	resp = ts.do(t, http.MethodGet, "/tickets/"+code+"/qr.png", nil, nil)
	if resp.Code != http.StatusOK || resp.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr: expected png, got %d %s", resp.Code, resp.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("qr body is not a png")
	}

	opHeaders := map[string]string{"Authorization": "Bearer " + ts.operatorToken(t)}
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]interface{}{"ticketCode": code, "eventId": ts.event.ID}, opHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("checkin: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	verdict := decodeMap(t, resp)
	if verdict["valid"] != true {
		t.Fatalf("expected valid verdict, got %v", verdict)
	}

	resp = ts.do(t, http.MethodPost, "/checkin", map[string]interface{}{"ticketCode": code}, opHeaders)
	verdict = decodeMap(t, resp)
	if verdict["valid"] != false || verdict["reason"] != checkin.ReasonAlreadyCheckedIn {
		t.Fatalf("expected AlreadyCheckedIn, got %v", verdict)
	}
	if _, ok := verdict["checkedInAt"]; !ok {
		t.Fatalf("expected prior check-in timestamp")
	}

	if len(ts.sender.messages) != 1 || ts.sender.messages[0].TicketCode != code {
		t.Fatalf("expected one ticket email, got %d", len(ts.sender.messages))
	}
}

func TestGetRegistrationRequiresAccessToken(t *testing.T) {
	ts := newTestServer(t)
	first := ts.store.PutRegistration(models.Registration{
		Event: ts.event.Ref(), AttendeeName: "Victim", AttendeeEmail: "victim@example.com",
		Category: models.CategoryGuest, PaymentStatus: models.PaymentStatusPending, AmountDue: 2500000,
	})
	second := ts.store.PutRegistration(models.Registration{
		Event: ts.event.Ref(), AttendeeName: "Other", AttendeeEmail: "other@example.com",
		Category: models.CategoryGuest, PaymentStatus: models.PaymentStatusPending, AmountDue: 2500000,
	})
	ack := decodeMap(t, ts.payWebhook(t, first.ID))
	code, _ := ack["ticketCode"].(string)
	if code == "" {
		t.Fatalf("expected issued ticket, got %v", ack)
	}

	path := fmt.Sprintf("/registrations/%d", first.ID)
	denied := []struct {
		name    string
		path    string
		headers map[string]string
	}{
		{name: "anonymous", path: path},
		{name: "garbage_token", path: path, headers: map[string]string{RegistrationAccessHeader: "deadbeef"}},
		{name: "token_of_other_registration", path: path + "?access=" + ts.handler.accessToken(second.ID)},
		{name: "unknown_id", path: "/registrations/9999", headers: map[string]string{RegistrationAccessHeader: ts.handler.accessToken(first.ID)}},
	}
	for _, tc := range denied {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, tc.path, nil, tc.headers)
			if resp.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", resp.Code)
			}
			body := resp.Body.String()
			if strings.Contains(body, code) || strings.Contains(body, "victim@example.com") {
				t.Fatalf("response leaked registration data: %s", body)
			}
		})
	}

	resp := ts.do(t, http.MethodGet, path+"?access="+ts.handler.accessToken(first.ID), nil, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), code) {
		t.Fatalf("expected ticket for holder of the token, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateRegistrationValidation(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name string
		body interface{}
		want int
	}{
		{name: "invalid_json", body: "{", want: http.StatusBadRequest},
		{name: "missing_email", body: map[string]interface{}{"eventId": ts.event.ID, "name": "A", "category": "guest"}, want: http.StatusBadRequest},
		{name: "bad_email", body: map[string]interface{}{"eventId": ts.event.ID, "name": "A", "email": "nope", "category": "guest"}, want: http.StatusBadRequest},
		{name: "bad_category", body: map[string]interface{}{"eventId": ts.event.ID, "name": "A", "email": "a@example.com", "category": "staff"}, want: http.StatusBadRequest},
		{name: "unknown_event", body: map[string]interface{}{"eventId": 999, "name": "A", "email": "a@example.com", "category": "guest"}, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/registrations", tc.body, nil)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestCreateRegistrationGatewayDownThenRetry(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.down = true

	resp := ts.do(t, http.MethodPost, "/registrations", map[string]interface{}{
		"eventId": ts.event.ID, "name": "Sari", "email": "sari@example.com", "category": "member",
	}, nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.Code, resp.Body.String())
	}
	var out registrationResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Registration.ID == 0 || out.Registration.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid registration in body, got %+v", out.Registration)
	}

	if out.AccessToken == "" {
		t.Fatalf("expected access token with the deferred registration")
	}

	ts.gateway.down = false
	retryPath := fmt.Sprintf("/registrations/%d/invoice", out.Registration.ID)
	resp = ts.do(t, http.MethodPost, retryPath, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("retry without access token: expected 404, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodPost, retryPath+"?access="+out.AccessToken, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Registration.PaymentStatus != models.PaymentStatusPending || out.CheckoutURL == "" {
		t.Fatalf("expected pending registration with checkout url, got %+v", out)
	}
}

func TestInvoiceWebhookStatuses(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.store.PutRegistration(models.Registration{
		Event: ts.event.Ref(), AttendeeName: "Rina", AttendeeEmail: "rina@example.com",
		Category: models.CategoryGuest, PaymentStatus: models.PaymentStatusPending, AmountDue: 2500000,
	})
	valid := fmt.Sprintf(`{"id":"inv-1","external_id":"reg-%d","status":"PAID","paid_amount":2500000}`, reg.ID)

	resp := ts.do(t, http.MethodPost, "/webhooks/invoice", valid, map[string]string{xendit.CallbackTokenHeader: "wrong"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "token") {
		t.Fatalf("401 body should be generic, got %s", resp.Body.String())
	}
	if got, _ := ts.store.ResolveRegistration(context.Background(), reg.Ref()); got.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("bad token must not mutate, status %s", got.PaymentStatus)
	}

	headers := map[string]string{xendit.CallbackTokenHeader: testCallbackToken}
	resp = ts.do(t, http.MethodPost, "/webhooks/invoice", `{"id":`, headers)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("malformed: expected 400, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodPost, "/webhooks/invoice", `{"id":"inv-2","external_id":"reg-9999","status":"PAID"}`, headers)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown registration: expected 404, got %d", resp.Code)
	}

	ts.store.SetFailure(fmt.Errorf("db down"))
	resp = ts.do(t, http.MethodPost, "/webhooks/invoice", valid, headers)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("store failure: expected 500, got %d", resp.Code)
	}
	ts.store.SetFailure(nil)

	for i := 0; i < 2; i++ {
		resp = ts.payWebhook(t, reg.ID)
		if resp.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, resp.Code)
		}
	}
	if n := len(ts.store.Tickets(reg.ID)); n != 1 {
		t.Fatalf("expected exactly one ticket after redelivery, got %d", n)
	}
	if ack := decodeMap(t, resp); ack["outcome"] != payments.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome on redelivery, got %v", ack["outcome"])
	}
}

func TestCheckInRequiresOperatorAndMapsVerdicts(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.store.PutRegistration(models.Registration{
		Event: ts.event.Ref(), AttendeeName: "Dewi", AttendeeEmail: "dewi@example.com",
		Category: models.CategoryVIP, PaymentStatus: models.PaymentStatusPending, AmountDue: 2500000,
	})
	ack := decodeMap(t, ts.payWebhook(t, reg.ID))
	code := ack["ticketCode"].(string)

	resp := ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": code}, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	opHeaders := map[string]string{"Authorization": "Bearer " + ts.operatorToken(t)}
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]interface{}{"ticketCode": code, "eventId": ts.other.ID}, opHeaders)
	if v := decodeMap(t, resp); v["reason"] != checkin.ReasonWrongEvent {
		t.Fatalf("expected WrongEvent, got %v", v)
	}
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": "APGC-999-0000"}, opHeaders)
	if v := decodeMap(t, resp); v["reason"] != checkin.ReasonTicketNotFound {
		t.Fatalf("expected TicketNotFound, got %v", v)
	}
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": strings.Repeat("garbage-", 40)}, opHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("long scan: expected 200 verdict, got %d: %s", resp.Code, resp.Body.String())
	}
	if v := decodeMap(t, resp); v["valid"] != false || v["reason"] != checkin.ReasonTicketNotFound {
		t.Fatalf("expected TicketNotFound for long scan, got %v", v)
	}

	resp = ts.do(t, http.MethodPost, "/admin/tickets/"+code+"/cancel", nil, opHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = ts.do(t, http.MethodPost, "/admin/tickets/"+code+"/cancel", nil, opHeaders)
	if resp.Code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": code}, opHeaders)
	if v := decodeMap(t, resp); v["reason"] != checkin.ReasonCancelled {
		t.Fatalf("expected Cancelled, got %v", v)
	}

	ts.store.SetFailure(fmt.Errorf("db down"))
	resp = ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": code}, opHeaders)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("store failure: expected 503, got %d", resp.Code)
	}
}

func TestAuthOperatorRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/auth/operator", map[string]string{"username": "gate-1", "password": "nope"}, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	resp = ts.do(t, http.MethodPost, "/auth/operator", map[string]string{"username": "gate-1"}, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without password, got %d", resp.Code)
	}
}

func TestHealthzReportsStore(t *testing.T) {
	ts := newTestServer(t)
	if resp := ts.do(t, http.MethodGet, "/healthz", nil, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	ts.store.SetFailure(fmt.Errorf("db down"))
	if resp := ts.do(t, http.MethodGet, "/healthz", nil, nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestTicketQRUnknownCode(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/tickets/APGC-5-abcd/qr.png", "/tickets/garbage/qr.png"} {
		if resp := ts.do(t, http.MethodGet, path, nil, nil); resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
	}
}

func TestAdminStatsAfterCheckIn(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.store.PutRegistration(models.Registration{
		Event: ts.event.Ref(), AttendeeName: "Eka", AttendeeEmail: "eka@example.com",
		Category: models.CategoryAlumni, PaymentStatus: models.PaymentStatusPending, AmountDue: 2500000,
	})
	ts.store.PutRegistration(models.Registration{
		Event: ts.other.Ref(), AttendeeName: "Fajar", AttendeeEmail: "fajar@example.com",
		Category: models.CategoryGuest, PaymentStatus: models.PaymentStatusExpired,
	})
	code := decodeMap(t, ts.payWebhook(t, reg.ID))["ticketCode"].(string)
	opHeaders := map[string]string{"Authorization": "Bearer " + ts.operatorToken(t)}
	ts.do(t, http.MethodPost, "/checkin", map[string]string{"ticketCode": code}, opHeaders)

	if resp := ts.do(t, http.MethodGet, "/admin/stats", nil, nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	resp := ts.do(t, http.MethodGet, "/admin/stats", nil, opHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var stats statsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Global.Registrations != 2 || stats.Global.CheckedIn != 1 || stats.Global.PaidAmount != 2500000 {
		t.Fatalf("unexpected global stats: %+v", stats.Global)
	}
	if len(stats.Events) != 2 || stats.Events[0].EventID != ts.event.ID {
		t.Fatalf("expected per-event buckets ordered by id, got %+v", stats.Events)
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/admin/stats?eventId=%d", ts.other.ID), nil, opHeaders)
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats.Events) != 1 || stats.Events[0].PaymentStatusCounts[models.PaymentStatusExpired] != 1 {
		t.Fatalf("unexpected filtered stats: %+v", stats.Events)
	}
	if resp := ts.do(t, http.MethodGet, "/admin/stats?eventId=abc", nil, opHeaders); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad eventId, got %d", resp.Code)
	}
}

func TestScannerLogs(t *testing.T) {
	ts := newTestServer(t)
	opHeaders := map[string]string{"Authorization": "Bearer " + ts.operatorToken(t)}

	resp := ts.do(t, http.MethodPost, "/scanner/logs", map[string]interface{}{
		"events": []map[string]interface{}{
			{"level": "error", "message": "camera_unavailable", "device": "gate-a"},
			{"level": "debug", "message": "scan_debounced"},
		},
	}, opHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if body := decodeMap(t, resp); body["logged"] != float64(1) {
		t.Fatalf("expected suppressed events to be skipped, got %v", body)
	}

	resp = ts.do(t, http.MethodPost, "/scanner/logs", map[string]interface{}{"events": []interface{}{}}, opHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", resp.Code)
	}
}
