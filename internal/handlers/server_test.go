package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/discount"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/webhook"
)

type fakePayments struct {
	created    *payment.CreateParams
	failed     []uuid.UUID
	processed  int
	processErr error
	refundErr  error
}

func (f *fakePayments) Create(_ context.Context, params payment.CreateParams) (*payment.Payment, error) {
	f.created = &params
	return &payment.Payment{ID: uuid.New(), StudentID: params.StudentID, Amount: params.Amount, Status: payment.StatusPending}, nil
}

func (f *fakePayments) Process(_ context.Context, id uuid.UUID, _ string) (*payment.Payment, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	f.processed++
	return &payment.Payment{ID: id, Status: payment.StatusProcessing, ExternalReference: "pi_1"}, nil
}

func (f *fakePayments) Fail(_ context.Context, id uuid.UUID) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakePayments) Get(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	return nil, payment.ErrNotFound
}

func (f *fakePayments) ListByStudent(_ context.Context, _ string, _ payment.Status, _ int) ([]payment.Payment, error) {
	return nil, nil
}

func (f *fakePayments) Transactions(_ context.Context, _ uuid.UUID) ([]payment.Transaction, error) {
	return nil, nil
}

func (f *fakePayments) Refund(_ context.Context, _ uuid.UUID, _ *decimal.Decimal, _ string) (*payment.Payment, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &payment.Payment{Status: payment.StatusRefunded}, nil
}

func (f *fakePayments) Statistics(_ context.Context, _, _ time.Time) (*payment.Statistics, error) {
	return &payment.Statistics{}, nil
}

type fakeSubscriptions struct {
	createErr error
}

func (f *fakeSubscriptions) Create(_ context.Context, studentID, subType, _, _ string, _ int) (*subscription.Subscription, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &subscription.Subscription{ID: uuid.New(), StudentID: studentID, Type: subType}, nil
}

func (f *fakeSubscriptions) Get(_ context.Context, _ uuid.UUID) (*subscription.Subscription, error) {
	return nil, subscription.ErrNotFound
}

func (f *fakeSubscriptions) GetByStudent(_ context.Context, _ string) (*subscription.Subscription, error) {
	return nil, subscription.ErrNotFound
}

func (f *fakeSubscriptions) Cancel(_ context.Context, id uuid.UUID, _ bool) (*subscription.Subscription, error) {
	return &subscription.Subscription{ID: id, IsCancelled: true}, nil
}

type fakeDiscounts struct {
	validateErr error
	applyErr    error
	applied     int
}

func (f *fakeDiscounts) Create(_ context.Context, params discount.CreateParams) (*discount.Discount, error) {
	return &discount.Discount{ID: uuid.New(), Code: params.Code}, nil
}

func (f *fakeDiscounts) Validate(_ context.Context, code, _ string) (*discount.Discount, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &discount.Discount{Code: code, Type: "PERCENTAGE", Value: decimal.NewFromInt(20)}, nil
}

func (f *fakeDiscounts) Apply(_ context.Context, code, _ string) (*discount.Discount, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applied++
	return &discount.Discount{Code: code, Type: "PERCENTAGE", Value: decimal.NewFromInt(20)}, nil
}

func (f *fakeDiscounts) ListActive(_ context.Context) ([]discount.Discount, error) {
	return nil, nil
}

type fakeInvoices struct{}

func (f *fakeInvoices) CreateInvoice(_ context.Context, params invoice.CreateParams) (*invoice.Invoice, error) {
	return &invoice.Invoice{ID: uuid.New(), StudentID: params.StudentID}, nil
}

func (f *fakeInvoices) Get(_ context.Context, _ uuid.UUID) (*invoice.Invoice, error) {
	return nil, invoice.ErrNotFound
}

func (f *fakeInvoices) GetByNumber(_ context.Context, _ string) (*invoice.Invoice, error) {
	return nil, invoice.ErrNotFound
}

func (f *fakeInvoices) ListByStudent(_ context.Context, _ string, _ int) ([]invoice.Invoice, error) {
	return nil, nil
}

type fakeReconciler struct {
	handled []*webhook.NormalizedEvent
	err     error
}

func (f *fakeReconciler) Handle(_ context.Context, ev *webhook.NormalizedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.handled = append(f.handled, ev)
	return nil
}

const testWalletSecret = "hook-secret"

func newTestServer(t *testing.T) (*Server, *fakePayments, *fakeSubscriptions, *fakeDiscounts, *fakeReconciler) {
	t.Helper()
	payments := &fakePayments{}
	subs := &fakeSubscriptions{}
	discounts := &fakeDiscounts{}
	reconciler := &fakeReconciler{}
	walletHook := webhook.NewWalletProcessor(testWalletSecret, zap.NewNop())
	srv := NewServer(payments, subs, discounts, &fakeInvoices{}, reconciler,
		webhook.NewCardProcessor("whsec_x", zap.NewNop()), walletHook, zap.NewNop())
	return srv, payments, subs, discounts, reconciler
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestPurchaseCreatesAndProcesses(t *testing.T) {
	srv, payments, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId": "stu-1",
		"amount":    "100.00",
		"currency":  "USD",
		"method":    "CREDIT_CARD",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, payments.created)
	assert.Equal(t, "100", payments.created.Amount.String())

	var resp payment.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, payment.StatusProcessing, resp.Status)
	assert.Equal(t, "pi_1", resp.ExternalReference)
}

func TestPurchaseAppliesDiscountBeforeFreezing(t *testing.T) {
	srv, payments, _, discounts, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId":    "stu-1",
		"amount":       "100.00",
		"method":       "CREDIT_CARD",
		"discountCode": "SAVE20",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, payments.created)
	assert.Equal(t, "80.00", payments.created.Amount.StringFixed(2))
	assert.Equal(t, 1, discounts.applied)
}

func TestPurchaseRejectsExhaustedDiscount(t *testing.T) {
	srv, payments, _, discounts, _ := newTestServer(t)
	discounts.validateErr = discount.ErrExhausted

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId":    "stu-1",
		"amount":       "100.00",
		"method":       "CREDIT_CARD",
		"discountCode": "DEAD",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, payments.created)
	assert.Zero(t, discounts.applied)
}

func TestPurchaseFailedCreateDoesNotBurnDiscount(t *testing.T) {
	srv, payments, _, discounts, _ := newTestServer(t)

	// Malformed body never reaches Create or Apply.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId":    "stu-1",
		"amount":       "not-a-number",
		"method":       "CREDIT_CARD",
		"discountCode": "SAVE20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, payments.created)
	assert.Zero(t, discounts.applied)
}

func TestPurchaseDiscountLostAfterCreateFailsPayment(t *testing.T) {
	srv, payments, _, discounts, _ := newTestServer(t)
	discounts.applyErr = discount.ErrExhausted

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId":    "stu-1",
		"amount":       "100.00",
		"method":       "CREDIT_CARD",
		"discountCode": "SAVE20",
	})

	// The code ran out between Validate and Apply: the created payment
	// is failed and never processed.
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, payments.created)
	assert.Len(t, payments.failed, 1)
	assert.Zero(t, payments.processed)
}

func TestPurchaseGatewayFailure(t *testing.T) {
	srv, payments, _, _, _ := newTestServer(t)
	payments.processErr = fmt.Errorf("processing: %w", payment.ErrInvalidState)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"studentId": "stu-1",
		"amount":    "100.00",
		"method":    "CREDIT_CARD",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefundErrorMapping(t *testing.T) {
	srv, payments, _, _, _ := newTestServer(t)
	payments.refundErr = payment.ErrRefundExceedsAmount

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/payments/"+uuid.NewString()+"/refund",
		map[string]interface{}{"amount": "200.00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDuplicateSubscriptionConflict(t *testing.T) {
	srv, _, subs, _, _ := newTestServer(t)
	subs.createErr = subscription.ErrDuplicateSubscription

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"studentId": "stu-1",
		"type":      "MONTHLY",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnknownPaymentIs404(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/payments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func signWallet(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testWalletSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWalletWebhookAccepted(t *testing.T) {
	srv, _, _, _, reconciler := newTestServer(t)

	payload := []byte(`{"id": "WH-1", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {"id": "CAP-1", "custom_id": "` + uuid.NewString() + `"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/wallet", bytes.NewReader(payload))
	req.Header.Set("X-Wallet-Signature", signWallet(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, reconciler.handled, 1)
	assert.Equal(t, webhook.KindCaptureSucceeded, reconciler.handled[0].Kind)
}

func TestWalletWebhookRejectsBadSignature(t *testing.T) {
	srv, _, _, _, reconciler := newTestServer(t)

	payload := []byte(`{"id": "WH-1", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/wallet", bytes.NewReader(payload))
	req.Header.Set("X-Wallet-Signature", "bogus")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reconciler.handled)
}

func TestWalletWebhookInternalErrorIs500(t *testing.T) {
	srv, _, _, _, reconciler := newTestServer(t)
	reconciler.err = errors.New("store down")

	payload := []byte(`{"id": "WH-1", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {"custom_id": "` + uuid.NewString() + `"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/wallet", bytes.NewReader(payload))
	req.Header.Set("X-Wallet-Signature", signWallet(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
