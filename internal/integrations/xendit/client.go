package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.xendit.co"
	defaultTimeout = 15 * time.Second

	idempotencyHeader = "X-Idempotency-Key"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidAmount      = errors.New("invoice amount must be positive")
)

type Config struct {
	BaseURL       string
	SecretKey     string
	CallbackToken string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client talks to the invoice API and authenticates inbound callbacks.
type Client struct {
	baseURL       string
	secretKey     string
	callbackToken string
	timeout       time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *slog.Logger
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xendit api status %d: %s", e.StatusCode, e.Body)
}

type InvoiceRequest struct {
	ExternalID  string
	Amount      int64
	Currency    string
	Description string
	PayerName   string
	PayerEmail  string
	SuccessURL  string
	FailureURL  string
}

type Invoice struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
}

type createInvoicePayload struct {
	ExternalID         string           `json:"external_id"`
	Amount             int64            `json:"amount"`
	Currency           string           `json:"currency,omitempty"`
	Description        string           `json:"description,omitempty"`
	PayerEmail         string           `json:"payer_email,omitempty"`
	Customer           *invoiceCustomer `json:"customer,omitempty"`
	SuccessRedirectURL string           `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string           `json:"failure_redirect_url,omitempty"`
}

type invoiceCustomer struct {
	GivenNames string `json:"given_names,omitempty"`
	Email      string `json:"email,omitempty"`
}

type createInvoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	Status     string `json:"status"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       baseURL,
		secretKey:     strings.TrimSpace(cfg.SecretKey),
		callbackToken: cfg.CallbackToken,
		timeout:       timeout,
		httpClient:    httpClient,
		limiter:       limiter,
		logger:        logger,
	}
}

// CreateInvoice opens a hosted checkout for the request. The external id is
// forwarded as the idempotency key so a retried call maps onto the same invoice.
func (c *Client) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	var out Invoice
	if in.Amount <= 0 {
		return out, ErrInvalidAmount
	}
	if strings.TrimSpace(in.ExternalID) == "" {
		return out, fmt.Errorf("external id is required")
	}

	payload := createInvoicePayload{
		ExternalID:         in.ExternalID,
		Amount:             in.Amount,
		Currency:           strings.ToUpper(strings.TrimSpace(in.Currency)),
		Description:        in.Description,
		PayerEmail:         in.PayerEmail,
		SuccessRedirectURL: in.SuccessURL,
		FailureRedirectURL: in.FailureURL,
	}
	if in.PayerName != "" || in.PayerEmail != "" {
		payload.Customer = &invoiceCustomer{GivenNames: in.PayerName, Email: in.PayerEmail}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodPost, "/v2/invoices", raw, in.ExternalID)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	var resp createInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, fmt.Errorf("%w: decode invoice response: %v", ErrGatewayUnavailable, err)
	}
	if strings.TrimSpace(resp.ID) == "" || strings.TrimSpace(resp.InvoiceURL) == "" {
		return out, fmt.Errorf("%w: invoice response missing id or invoice_url", ErrGatewayUnavailable)
	}
	c.logger.Info("xendit_invoice_created", "external_id", in.ExternalID, "invoice_id", resp.ID, "status", resp.Status)
	return Invoice{ID: resp.ID, CheckoutURL: resp.InvoiceURL}, nil
}

func (c *Client) do(ctx context.Context, method, pathPart string, payload []byte, idempotencyKey string) ([]byte, error) {
	if c.secretKey == "" {
		return nil, fmt.Errorf("xendit secret key is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathPart, bodyReader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	c.logger.Debug("xendit_api_response", "method", method, "path", pathPart, "status", resp.StatusCode)
	return body, nil
}
