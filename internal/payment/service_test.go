package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/gateway"
)

type fakeStore struct {
	payments map[uuid.UUID]*Payment
}

func newFakeStore() *fakeStore {
	return &fakeStore{payments: make(map[uuid.UUID]*Payment)}
}

func (f *fakeStore) Create(_ context.Context, p *Payment) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListByStudent(_ context.Context, studentID string, status Status, limit int) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if p.StudentID == studentID && (status == "" || p.Status == status) && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = StatusProcessing
	return true, nil
}

func (f *fakeStore) SetGatewayRef(_ context.Context, id uuid.UUID, externalRef string, raw []byte) error {
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.ExternalReference = externalRef
	p.GatewayResponse = raw
	return nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	p, ok := f.payments[id]
	if !ok || (p.Status != StatusPending && p.Status != StatusProcessing) {
		return false, nil
	}
	p.Status = StatusCompleted
	at := paidAt
	p.PaidAt = &at
	return true, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status.IsTerminal() {
		return false, nil
	}
	p.Status = StatusFailed
	return true, nil
}

func (f *fakeStore) MarkRefunded(_ context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != StatusCompleted {
		return false, nil
	}
	p.Status = StatusRefunded
	p.IsRefunded = true
	p.RefundedAmount = amount
	t := at
	p.RefundedAt = &t
	return true, nil
}

func (f *fakeStore) ExpireStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, p := range f.payments {
		if p.Status == StatusProcessing && p.UpdatedAt.Before(cutoff) {
			p.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Statistics(_ context.Context, _, _ time.Time) (*Statistics, error) {
	return &Statistics{}, nil
}

type fakeTxStore struct {
	transactions []Transaction
}

func (f *fakeTxStore) Append(_ context.Context, t *Transaction) (bool, error) {
	for _, existing := range f.transactions {
		if existing.PaymentID == t.PaymentID && existing.Type == t.Type {
			return false, nil
		}
	}
	f.transactions = append(f.transactions, *t)
	return true, nil
}

func (f *fakeTxStore) ListForPayment(_ context.Context, paymentID uuid.UUID) ([]Transaction, error) {
	var out []Transaction
	for _, t := range f.transactions {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockAdapter struct {
	name           string
	intentErr      error
	refundErr      error
	lastMeta       map[string]string
	refundedID     string
	refundCurrency string
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) CreateIntent(_ context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*gateway.Intent, error) {
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	m.lastMeta = metadata
	return &gateway.Intent{
		ExternalID: "pi_test_1",
		Status:     gateway.StatusProcessing,
		Raw:        json.RawMessage(`{"id":"pi_test_1"}`),
	}, nil
}

func (m *mockAdapter) Confirm(_ context.Context, externalID string) (*gateway.Intent, error) {
	return &gateway.Intent{ExternalID: externalID, Status: gateway.StatusCompleted}, nil
}

func (m *mockAdapter) Refund(_ context.Context, externalID string, amount *decimal.Decimal, currency string) (*gateway.RefundResult, error) {
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	m.refundedID = externalID
	m.refundCurrency = currency
	return &gateway.RefundResult{ExternalID: "re_1", Status: gateway.StatusCompleted}, nil
}

func (m *mockAdapter) Status(_ context.Context, _ string) (gateway.Status, error) {
	return gateway.StatusCompleted, nil
}

func (m *mockAdapter) CreateCustomer(_ context.Context, _ string, _ map[string]string) (string, error) {
	return "cus_1", nil
}

func (m *mockAdapter) CreateSubscription(_ context.Context, _, _ string, _ map[string]string) (*gateway.SubscriptionResult, error) {
	return &gateway.SubscriptionResult{ExternalID: "sub_1"}, nil
}

func (m *mockAdapter) CancelSubscription(_ context.Context, _ string) error { return nil }

func newTestLedger(t *testing.T) (*Ledger, *fakeStore, *fakeTxStore, *mockAdapter) {
	t.Helper()
	store := newFakeStore()
	txStore := &fakeTxStore{}
	adapter := &mockAdapter{name: "card"}
	factory := gateway.NewFactory()
	factory.Register(gateway.MethodCreditCard, adapter)

	l := NewLedger(store, txStore, factory, zap.NewNop())
	return l, store, txStore, adapter
}

func createTestPayment(t *testing.T, l *Ledger, amount string) *Payment {
	t.Helper()
	p, err := l.Create(context.Background(), CreateParams{
		StudentID: "stu-1",
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
		Method:    "CREDIT_CARD",
	})
	require.NoError(t, err)
	return p
}

func TestCreateFreezesFees(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	p := createTestPayment(t, l, "100.00")

	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "10.00", p.PlatformFee.StringFixed(2))
	assert.Equal(t, "3.20", p.ProcessingFee.StringFixed(2))
	assert.Equal(t, "86.80", p.NetAmount.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	_, err := l.Create(context.Background(), CreateParams{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.Create(context.Background(), CreateParams{StudentID: "stu-1", Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.Create(context.Background(), CreateParams{
		StudentID: "stu-1", Amount: decimal.NewFromInt(10), Currency: "XYZ",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateDefaultsCurrency(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	p, err := l.Create(context.Background(), CreateParams{
		StudentID: "stu-1", Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Currency)
}

func TestProcessRecordsGatewayReference(t *testing.T) {
	l, _, _, adapter := newTestLedger(t)
	p := createTestPayment(t, l, "49.99")

	processed, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, processed.Status)
	assert.Equal(t, "pi_test_1", processed.ExternalReference)
	assert.Equal(t, p.ID.String(), adapter.lastMeta["payment_id"])
	assert.Equal(t, "stu-1", adapter.lastMeta["student_id"])
}

func TestProcessGatewayFailureMarksFailed(t *testing.T) {
	l, store, _, adapter := newTestLedger(t)
	adapter.intentErr = gateway.ErrGatewayUnavailable
	p := createTestPayment(t, l, "49.99")

	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)

	got, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestProcessRejectsNonPending(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "49.99")

	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)

	_, err = l.Process(context.Background(), p.ID, "CREDIT_CARD")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestProcessUnknownMethod(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "49.99")

	_, err := l.Process(context.Background(), p.ID, "CARRIER_PIGEON")
	assert.ErrorIs(t, err, gateway.ErrUnsupportedGateway)
}

func TestConfirmIsIdempotent(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "100.00")
	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)

	first, moved, err := l.Confirm(context.Background(), p.ID, "pi_test_1")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.PaidAt)

	second, moved, err := l.Confirm(context.Background(), p.ID, "pi_test_1")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.PaidAt, second.PaidAt)

	txns, err := l.Transactions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, TransactionPayment, txns[0].Type)
	assert.Equal(t, "100.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "pi_test_1", txns[0].GatewayID)
}

func TestConfirmRejectsTerminalNonCompleted(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "100.00")
	require.NoError(t, l.Fail(context.Background(), p.ID))

	_, _, err := l.Confirm(context.Background(), p.ID, "pi_test_1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFailIsNoOpOnTerminal(t *testing.T) {
	l, store, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "100.00")
	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)
	_, _, err = l.Confirm(context.Background(), p.ID, "pi_test_1")
	require.NoError(t, err)

	require.NoError(t, l.Fail(context.Background(), p.ID))

	got, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func confirmTestPayment(t *testing.T, l *Ledger, amount string) *Payment {
	t.Helper()
	p := createTestPayment(t, l, amount)
	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)
	confirmed, _, err := l.Confirm(context.Background(), p.ID, "pi_test_1")
	require.NoError(t, err)
	return confirmed
}

func TestRefundFull(t *testing.T) {
	l, _, _, adapter := newTestLedger(t)
	p := confirmTestPayment(t, l, "100.00")

	refunded, err := l.Refund(context.Background(), p.ID, nil, "course cancelled")
	require.NoError(t, err)

	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.True(t, refunded.IsRefunded)
	assert.Equal(t, "100.00", refunded.RefundedAmount.StringFixed(2))
	assert.Equal(t, "pi_test_1", adapter.refundedID)

	txns, err := l.Transactions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, TransactionRefund, txns[1].Type)
	assert.Equal(t, "-100.00", txns[1].Amount.StringFixed(2))
}

func TestRefundPartial(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := confirmTestPayment(t, l, "100.00")

	amt := decimal.RequireFromString("40.00")
	refunded, err := l.Refund(context.Background(), p.ID, &amt, "")
	require.NoError(t, err)
	assert.Equal(t, "40.00", refunded.RefundedAmount.StringFixed(2))
}

func TestRefundCarriesPaymentCurrency(t *testing.T) {
	l, _, _, adapter := newTestLedger(t)
	p, err := l.Create(context.Background(), CreateParams{
		StudentID: "stu-1",
		Amount:    decimal.RequireFromString("5000"),
		Currency:  "JPY",
		Method:    "CREDIT_CARD",
	})
	require.NoError(t, err)
	_, err = l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)
	_, _, err = l.Confirm(context.Background(), p.ID, "pi_test_1")
	require.NoError(t, err)

	amt := decimal.RequireFromString("500")
	_, err = l.Refund(context.Background(), p.ID, &amt, "")
	require.NoError(t, err)
	assert.Equal(t, "JPY", adapter.refundCurrency)
}

func TestRefundExceedsAmount(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := confirmTestPayment(t, l, "100.00")

	amt := decimal.RequireFromString("100.01")
	_, err := l.Refund(context.Background(), p.ID, &amt, "")
	assert.ErrorIs(t, err, ErrRefundExceedsAmount)
}

func TestRefundMapsGatewayExcessError(t *testing.T) {
	l, _, _, adapter := newTestLedger(t)
	p := confirmTestPayment(t, l, "100.00")
	adapter.refundErr = gateway.ErrRefundExceedsCaptured

	_, err := l.Refund(context.Background(), p.ID, nil, "")
	assert.ErrorIs(t, err, ErrRefundExceedsAmount)
}

func TestRefundRequiresCompleted(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "100.00")

	_, err := l.Refund(context.Background(), p.ID, nil, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireStaleProcessing(t *testing.T) {
	l, store, _, _ := newTestLedger(t)
	p := createTestPayment(t, l, "100.00")
	_, err := l.Process(context.Background(), p.ID, "CREDIT_CARD")
	require.NoError(t, err)

	// Fresh PROCESSING payments are untouched.
	n, err := l.ExpireStaleProcessing(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Age the payment past the cutoff.
	store.payments[p.ID].UpdatedAt = time.Now().Add(-48 * time.Hour)
	n, err = l.ExpireStaleProcessing(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestGetUnknownPayment(t *testing.T) {
	l, _, _, _ := newTestLedger(t)
	_, err := l.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}
