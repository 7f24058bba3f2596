package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletGateway talks to the wallet provider's REST API. The provider has
// no Go SDK; it speaks OAuth2 client-credentials plus a small orders API,
// with amounts as decimal strings in major units.
type WalletGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewWalletGateway(baseURL, clientID, clientSecret string, log *zap.Logger) *WalletGateway {
	return &WalletGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
}

func (g *WalletGateway) Name() string { return "wallet" }

// accessToken returns a cached bearer token, refreshing when within a
// minute of expiry.
func (g *WalletGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExp.Add(-time.Minute)) {
		return g.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: token endpoint returned %d: %s", ErrGatewayUnavailable, resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decoding token: %v", ErrGatewayUnavailable, err)
	}

	g.token = tok.AccessToken
	g.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return g.token, nil
}

// walletError is the provider's error envelope.
type walletError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// call issues one authenticated JSON request and decodes the response into
// out (when non-nil). Provider errors are translated, never passed through.
func (g *WalletGateway) call(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal wallet request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrGatewayUnavailable, err)
		}
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	var werr walletError
	_ = json.Unmarshal(raw, &werr)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrIntentNotFound, werr.Message)
	case resp.StatusCode == http.StatusUnprocessableEntity && isRefundExcess(werr.Name):
		return fmt.Errorf("%w: %s", ErrRefundExceedsCaptured, werr.Message)
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrGatewayUnavailable, method, path, resp.StatusCode, raw)
	}
	return fmt.Errorf("wallet gateway rejected the request (%d): %s", resp.StatusCode, raw)
}

func isRefundExcess(name string) bool {
	switch name {
	case "REFUND_AMOUNT_EXCEEDED", "MAX_REFUND_AMOUNT_EXCEEDED", "CAPTURE_FULLY_REFUNDED":
		return true
	}
	return false
}

type walletAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// newWalletAmount renders an amount in the provider's native convention:
// two decimal places, except zero-decimal currencies which carry none.
func newWalletAmount(amount decimal.Decimal, currency string) walletAmount {
	currency = strings.ToUpper(currency)
	value := amount.StringFixed(2)
	if zeroDecimalCurrencies[currency] {
		value = amount.StringFixed(0)
	}
	return walletAmount{CurrencyCode: currency, Value: value}
}

type walletOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (g *WalletGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": newWalletAmount(amount, currency),
				// custom_id carries the local payment id back on webhooks
				"custom_id": metadata["payment_id"],
			},
		},
	}

	var order walletOrder
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, err
	}
	return &Intent{
		ExternalID: order.ID,
		Status:     g.normalizeStatus(order.Status),
	}, nil
}

func (g *WalletGateway) Confirm(ctx context.Context, externalID string) (*Intent, error) {
	var order walletOrder
	err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+externalID+"/capture", struct{}{}, &order)
	if err != nil {
		// An already-captured order is a success for idempotency purposes;
		// re-read its terminal state instead of failing the caller.
		status, serr := g.Status(ctx, externalID)
		if serr == nil && status == StatusCompleted {
			return &Intent{ExternalID: externalID, Status: status}, nil
		}
		return nil, err
	}
	return &Intent{
		ExternalID: order.ID,
		Status:     g.normalizeStatus(order.Status),
	}, nil
}

func (g *WalletGateway) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, currency string) (*RefundResult, error) {
	payload := map[string]interface{}{}
	if amount != nil {
		payload["amount"] = newWalletAmount(*amount, currency)
	}

	var result struct {
		ID     string       `json:"id"`
		Status string       `json:"status"`
		Amount walletAmount `json:"amount"`
	}
	if err := g.call(ctx, http.MethodPost, "/v2/payments/captures/"+externalID+"/refund", payload, &result); err != nil {
		return nil, err
	}

	refunded, err := decimal.NewFromString(result.Amount.Value)
	if err != nil {
		refunded = decimal.Zero
	}
	status := StatusCompleted
	if result.Status != "COMPLETED" {
		status = StatusProcessing
	}
	return &RefundResult{ExternalID: result.ID, Status: status, Amount: refunded}, nil
}

func (g *WalletGateway) Status(ctx context.Context, externalID string) (Status, error) {
	var order walletOrder
	if err := g.call(ctx, http.MethodGet, "/v2/checkout/orders/"+externalID, nil, &order); err != nil {
		return StatusPending, err
	}
	return g.normalizeStatus(order.Status), nil
}

func (g *WalletGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	payload := map[string]interface{}{"email": email}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	var customer struct {
		ID string `json:"id"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/customers", payload, &customer); err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (g *WalletGateway) CreateSubscription(ctx context.Context, customerID, planID string, metadata map[string]string) (*SubscriptionResult, error) {
	payload := map[string]interface{}{
		"customer_id": customerID,
		"plan_id":     planID,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	var sub struct {
		ID               string    `json:"id"`
		Status           string    `json:"status"`
		CurrentPeriodEnd time.Time `json:"current_period_end"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &sub); err != nil {
		return nil, err
	}
	return &SubscriptionResult{
		ExternalID:       sub.ID,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

func (g *WalletGateway) CancelSubscription(ctx context.Context, externalID string) error {
	return g.call(ctx, http.MethodPost, "/v1/billing/subscriptions/"+externalID+"/cancel", struct{}{}, nil)
}

// walletStatusTable is the exhaustive provider-native → normalized mapping.
var walletStatusTable = map[string]Status{
	"CREATED":               StatusPending,
	"SAVED":                 StatusPending,
	"APPROVED":              StatusProcessing,
	"PAYER_ACTION_REQUIRED": StatusProcessing,
	"COMPLETED":             StatusCompleted,
	"VOIDED":                StatusCancelled,
	"DECLINED":              StatusFailed,
}

func (g *WalletGateway) normalizeStatus(native string) Status {
	if mapped, ok := walletStatusTable[native]; ok {
		return mapped
	}
	g.log.Warn("unmapped wallet provider status, defaulting to PENDING",
		zap.String("provider", g.Name()),
		zap.String("native_status", native))
	return StatusPending
}
