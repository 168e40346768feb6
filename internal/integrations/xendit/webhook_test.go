package xendit

import "testing"

func TestVerifyCallbackToken(t *testing.T) {
	client := NewClient(Config{CallbackToken: "cb-secret"}, nil, nil)
	if !client.VerifyCallbackToken("cb-secret") {
		t.Fatalf("expected matching token to verify")
	}
	for _, presented := range []string{"", "cb-secre", "cb-secret ", "other"} {
		if client.VerifyCallbackToken(presented) {
			t.Fatalf("token %q should not verify", presented)
		}
	}
}

func TestVerifyCallbackTokenFailsClosedWithoutSecret(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	if client.VerifyCallbackToken("") || client.VerifyCallbackToken("anything") {
		t.Fatalf("unconfigured secret must reject every token")
	}
	var nilClient *Client
	if nilClient.VerifyCallbackToken("anything") {
		t.Fatalf("nil client must reject")
	}
}

func TestParseWebhook(t *testing.T) {
	event, ok := ParseWebhook([]byte(`{"id":"inv_1","external_id":"reg-42","status":"paid","paid_amount":2500000,"paid_at":"2026-03-01T10:00:00.000Z","payment_method":"BANK_TRANSFER"}`))
	if !ok {
		t.Fatalf("expected payload to parse")
	}
	if event.Status != StatusPaid || !event.IsPaid() {
		t.Fatalf("unexpected status: %s", event.Status)
	}
	if event.PaidAmount == nil || *event.PaidAmount != 2500000 {
		t.Fatalf("unexpected paid amount: %v", event.PaidAmount)
	}
	if event.PaidAt == nil || event.PaidAt.Hour() != 10 {
		t.Fatalf("unexpected paid at: %v", event.PaidAt)
	}
}

func TestParseWebhookRejectsMalformed(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`{"external_id":"reg-1","status":"PAID"}`,
		`{"id":"inv","status":"PAID"}`,
		`{"id":"inv","external_id":"reg-1"}`,
		`{"id":"inv","external_id":"reg-1","status":"PAID","paid_amount":-5}`,
		`{"id":"inv","external_id":"reg-1","status":"PAID","paid_amount":1e20}`,
		`{"id":"inv","external_id":"reg-1","status":"PAID","paid_amount":9223372036854775808}`,
	}
	for _, raw := range cases {
		if event, ok := ParseWebhook([]byte(raw)); ok || event != nil {
			t.Fatalf("payload %q should be rejected", raw)
		}
	}
}

func TestParseWebhookKeepsLargestStorableAmount(t *testing.T) {
	event, ok := ParseWebhook([]byte(`{"id":"inv","external_id":"reg-1","status":"PAID","paid_amount":9007199254740992}`))
	if !ok || event.PaidAmount == nil {
		t.Fatalf("expected amount below the int64 ceiling to parse")
	}
	if *event.PaidAmount != 9007199254740992 {
		t.Fatalf("unexpected amount %d", *event.PaidAmount)
	}
}

func TestParseWebhookToleratesUnparseablePaidAt(t *testing.T) {
	for _, paidAt := range []string{"2024-01-01 10:00:00", "yesterday"} {
		raw := `{"id":"inv","external_id":"reg-1","status":"PAID","paid_amount":1000,"paid_at":"` + paidAt + `"}`
		event, ok := ParseWebhook([]byte(raw))
		if !ok || event == nil {
			t.Fatalf("paid_at %q must not make the callback malformed", paidAt)
		}
		if event.PaidAt != nil {
			t.Fatalf("expected no parsed paid at, got %v", event.PaidAt)
		}
		if event.RawPaidAt != paidAt {
			t.Fatalf("expected raw paid at %q, got %q", paidAt, event.RawPaidAt)
		}
	}
}

func TestExternalIDRoundTrip(t *testing.T) {
	if got := ExternalID(42); got != "reg-42" {
		t.Fatalf("ExternalID = %q", got)
	}
	if id, ok := ParseExternalID("reg-42"); !ok || id != 42 {
		t.Fatalf("ParseExternalID = %d %v", id, ok)
	}
	for _, bad := range []string{"42", "reg-", "reg-x", "reg-0", "order-42"} {
		if _, ok := ParseExternalID(bad); ok {
			t.Fatalf("ParseExternalID(%q) should fail", bad)
		}
	}
}
