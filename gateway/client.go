package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"easicart-api/circuitbreaker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Error is a gateway-reported failure, either transport-level or an
// error-status body from the checkout endpoint.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error: %s", e.Message)
	}
	return fmt.Sprintf("gateway error: status %d", e.StatusCode)
}

// InitiateRequest is the hosted-checkout initiation payload. Amount is in
// minor currency units (kobo for NGN).
type InitiateRequest struct {
	PublicKey      string `json:"public_key"`
	RequestType    string `json:"request_type"`
	MerchantTxRef  string `json:"merchant_tx_ref"`
	RedirectURL    string `json:"redirect_url"`
	Name           string `json:"name"`
	EmailAddress   string `json:"email_address"`
	PhoneNumber    string `json:"phone_number"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	UserBearCharge string `json:"user_bear_charge"`
	Description    string `json:"description"`
}

type initiateResponse struct {
	Status  string `json:"status"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Client is a thin caller of the external payment processor. One attempt per
// call, bounded by Config.Timeout; a circuit breaker sheds calls while the
// processor is down so checkouts fail fast instead of piling up.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:     logger,
	}
}

// NewRequest fills the static configuration fields; the caller supplies the
// per-order payer and amount fields.
func (c *Client) NewRequest(merchantRef, name, email, phone string, amountMinor int64) InitiateRequest {
	return InitiateRequest{
		PublicKey:      c.cfg.PublicKey,
		RequestType:    c.cfg.RequestType,
		MerchantTxRef:  merchantRef,
		RedirectURL:    c.cfg.RedirectURL,
		Name:           name,
		EmailAddress:   email,
		PhoneNumber:    phone,
		Amount:         amountMinor,
		Currency:       "NGN",
		UserBearCharge: "no",
		Description:    "Order payment",
	}
}

// InitiateTransaction opens a hosted-checkout transaction and returns the
// URL the customer must be redirected to.
func (c *Client) InitiateTransaction(ctx context.Context, req InitiateRequest) (string, error) {
	ctx, span := otel.Tracer("easicart-api").Start(ctx, "InitiateTransaction")
	defer span.End()

	span.SetAttributes(
		attribute.String("merchant_tx_ref", req.MerchantTxRef),
		attribute.Int64("amount", req.Amount),
	)

	var url string
	err := c.breaker.Execute(ctx, func() error {
		var callErr error
		url, callErr = c.initiate(ctx, req)
		return callErr
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return url, nil
}

func (c *Client) initiate(ctx context.Context, req InitiateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/initiate_transaction", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{StatusCode: resp.StatusCode}
	}

	var out initiateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: "malformed response body"}
	}

	if out.Status == "error" {
		return "", &Error{StatusCode: resp.StatusCode, Message: out.Message}
	}
	if out.URL == "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: "missing checkout url"}
	}

	c.logger.Info("Payment transaction initiated",
		zap.String("merchant_tx_ref", req.MerchantTxRef),
		zap.Int64("amount", req.Amount),
	)
	return out.URL, nil
}
