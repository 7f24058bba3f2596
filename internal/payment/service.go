package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/gateway"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
)

// Ledger is the payment state machine. It creates payments with frozen
// fees, drives them through a gateway adapter, and applies the idempotent
// terminal transitions the webhook reconciler relies on.
type Ledger struct {
	store    Store
	txStore  TransactionStore
	gateways *gateway.Factory
	log      *zap.Logger

	// sf collapses concurrent Process calls for the same payment into a
	// single gateway round trip.
	sf singleflight.Group

	// clock allows tests to pin "now".
	clock func() time.Time
}

func NewLedger(store Store, txStore TransactionStore, gateways *gateway.Factory, log *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		txStore:  txStore,
		gateways: gateways,
		log:      log,
		clock:    time.Now,
	}
}

// CreateParams is the inbound purchase request, minus everything the
// routing layer already stripped.
type CreateParams struct {
	StudentID      string
	Amount         decimal.Decimal
	Currency       string
	Method         string
	CourseID       string
	SubscriptionID string
	Description    string
	Metadata       map[string]string
}

// Create records a new PENDING payment. Fees are computed here, once, and
// never recomputed retroactively.
func (l *Ledger) Create(ctx context.Context, params CreateParams) (*Payment, error) {
	params.StudentID = strings.TrimSpace(params.StudentID)
	if params.StudentID == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrInvalidInput)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = money.DefaultCurrency
	}
	if !money.SupportedCurrencies[currency] {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidInput, params.Currency)
	}

	amount := params.Amount.Round(2)
	platformFee := money.PlatformFee(amount)
	processingFee := money.ProcessingFee(amount)

	now := l.clock()
	p := &Payment{
		ID:             uuid.New(),
		StudentID:      params.StudentID,
		Amount:         amount,
		Currency:       currency,
		Method:         strings.ToUpper(strings.TrimSpace(params.Method)),
		Status:         StatusPending,
		CourseID:       params.CourseID,
		SubscriptionID: params.SubscriptionID,
		Description:    params.Description,
		Metadata:       params.Metadata,
		PlatformFee:    platformFee,
		ProcessingFee:  processingFee,
		NetAmount:      money.NetAmount(amount, platformFee, processingFee),
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := l.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating payment: %w", err)
	}
	l.log.Info("payment created",
		zap.String("payment_id", p.ID.String()),
		zap.String("student_id", p.StudentID),
		zap.String("amount", p.Amount.String()),
		zap.String("currency", p.Currency))
	return p, nil
}

// Process moves a PENDING payment to PROCESSING and registers the charge
// with the provider. Adapter failure marks the payment FAILED and re-raises
// the error; a retry means creating a new payment so the audit trail stays
// complete.
func (l *Ledger) Process(ctx context.Context, paymentID uuid.UUID, gatewayType string) (*Payment, error) {
	v, err, _ := l.sf.Do("process_"+paymentID.String(), func() (interface{}, error) {
		return l.process(ctx, paymentID, gatewayType)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Payment), nil
}

func (l *Ledger) process(ctx context.Context, paymentID uuid.UUID, gatewayType string) (*Payment, error) {
	p, err := l.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	adapter, err := l.gateways.ForMethod(gatewayType)
	if err != nil {
		return nil, err
	}

	moved, err := l.store.MarkProcessing(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("marking payment processing: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("%w: payment %s is %s, expected PENDING", ErrInvalidState, paymentID, p.Status)
	}

	metadata := map[string]string{
		"payment_id": p.ID.String(),
		"student_id": p.StudentID,
	}
	if p.SubscriptionID != "" {
		metadata["subscription_id"] = p.SubscriptionID
	}
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	// Blocking network I/O; no store lock is held here.
	intent, err := adapter.CreateIntent(ctx, p.Amount, p.Currency, metadata)
	if err != nil {
		if _, ferr := l.store.MarkFailed(ctx, paymentID); ferr != nil {
			l.log.Error("payment failed at gateway and FAILED write also failed",
				zap.String("payment_id", paymentID.String()), zap.Error(ferr))
		}
		l.log.Warn("gateway rejected charge attempt",
			zap.String("payment_id", paymentID.String()),
			zap.String("gateway", adapter.Name()),
			zap.Error(err))
		return nil, fmt.Errorf("processing payment %s: %w", paymentID, err)
	}

	if err := l.store.SetGatewayRef(ctx, paymentID, intent.ExternalID, intent.Raw); err != nil {
		return nil, fmt.Errorf("recording gateway reference: %w", err)
	}

	l.log.Info("payment submitted to gateway",
		zap.String("payment_id", paymentID.String()),
		zap.String("gateway", adapter.Name()),
		zap.String("external_reference", intent.ExternalID))
	return l.store.Get(ctx, paymentID)
}

// Confirm applies the idempotent COMPLETED transition and writes exactly
// one payment transaction. Confirming an already-COMPLETED payment returns
// the current state with no side effects. The bool reports whether this
// call performed the transition, so callers can suppress follow-on effects
// on a duplicate delivery.
func (l *Ledger) Confirm(ctx context.Context, paymentID uuid.UUID, gatewayTxnID string) (*Payment, bool, error) {
	now := l.clock()
	moved, err := l.store.MarkCompleted(ctx, paymentID, now)
	if err != nil {
		return nil, false, fmt.Errorf("confirming payment: %w", err)
	}

	p, err := l.store.Get(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if !moved {
		if p.Status == StatusCompleted {
			// Duplicate webhook delivery; already settled.
			return p, false, nil
		}
		return nil, false, fmt.Errorf("%w: cannot confirm payment in state %s", ErrInvalidState, p.Status)
	}

	inserted, err := l.txStore.Append(ctx, &Transaction{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Type:      TransactionPayment,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    StatusCompleted,
		GatewayID: gatewayTxnID,
		CreatedAt: now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("recording payment transaction: %w", err)
	}
	if !inserted {
		l.log.Info("payment transaction already recorded, skipping duplicate",
			zap.String("payment_id", p.ID.String()))
	}

	l.log.Info("payment confirmed",
		zap.String("payment_id", p.ID.String()),
		zap.String("gateway_txn", gatewayTxnID))
	return p, true, nil
}

// Fail applies the safe terminal FAILED transition. Failing an
// already-terminal payment is a no-op, which makes duplicate
// capture-failed webhooks harmless.
func (l *Ledger) Fail(ctx context.Context, paymentID uuid.UUID) error {
	moved, err := l.store.MarkFailed(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failing payment: %w", err)
	}
	if moved {
		l.log.Warn("payment failed", zap.String("payment_id", paymentID.String()))
	}
	return nil
}

// Refund reverses a COMPLETED payment, fully or partially. The ledger is
// authoritative: the refund is initiated here against the provider, then
// recorded locally; webhooks only log refund confirmations for audit.
func (l *Ledger) Refund(ctx context.Context, paymentID uuid.UUID, amount *decimal.Decimal, reason string) (*Payment, error) {
	p, err := l.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: can only refund completed payments, current status is %s", ErrInvalidState, p.Status)
	}

	refundAmount := p.Amount
	if amount != nil {
		refundAmount = amount.Round(2)
	}
	if refundAmount.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("%w: %s > %s", ErrRefundExceedsAmount, refundAmount, p.Amount)
	}
	if !refundAmount.IsPositive() {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrInvalidInput)
	}

	adapter, err := l.gateways.ForMethod(p.Method)
	if err != nil {
		return nil, err
	}
	var partial *decimal.Decimal
	if amount != nil {
		partial = &refundAmount
	}
	if _, err := adapter.Refund(ctx, p.ExternalReference, partial, p.Currency); err != nil {
		if errors.Is(err, gateway.ErrRefundExceedsCaptured) {
			return nil, fmt.Errorf("%w: %v", ErrRefundExceedsAmount, err)
		}
		return nil, fmt.Errorf("refunding payment %s at gateway: %w", paymentID, err)
	}

	now := l.clock()
	moved, err := l.store.MarkRefunded(ctx, paymentID, refundAmount, now)
	if err != nil {
		return nil, fmt.Errorf("recording refund: %w", err)
	}
	if !moved {
		// Lost a race with another refund of the same payment.
		return nil, fmt.Errorf("%w: payment %s is no longer refundable", ErrInvalidState, paymentID)
	}

	if _, err := l.txStore.Append(ctx, &Transaction{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Type:      TransactionRefund,
		Amount:    refundAmount.Neg(),
		Currency:  p.Currency,
		Status:    StatusCompleted,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("recording refund transaction: %w", err)
	}

	l.log.Info("payment refunded",
		zap.String("payment_id", p.ID.String()),
		zap.String("amount", refundAmount.String()),
		zap.String("reason", reason))
	return l.store.Get(ctx, paymentID)
}

// Get fetches one payment.
func (l *Ledger) Get(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	return l.store.Get(ctx, paymentID)
}

// ListByStudent returns a student's payments, newest first. An empty status
// means all statuses.
func (l *Ledger) ListByStudent(ctx context.Context, studentID string, status Status, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.ListByStudent(ctx, studentID, status, limit)
}

// Transactions returns the settlement trail for one payment.
func (l *Ledger) Transactions(ctx context.Context, paymentID uuid.UUID) ([]Transaction, error) {
	return l.txStore.ListForPayment(ctx, paymentID)
}

// Statistics aggregates settled money over [from, to).
func (l *Ledger) Statistics(ctx context.Context, from, to time.Time) (*Statistics, error) {
	return l.store.Statistics(ctx, from, to)
}

// ExpireStaleProcessing is the timeout sweep for payments stuck in
// PROCESSING with no webhook ever arriving. The predicate is re-checked at
// write time so a confirmation racing the sweep always wins.
func (l *Ledger) ExpireStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := l.clock().Add(-olderThan)
	n, err := l.store.ExpireStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring stale payments: %w", err)
	}
	if n > 0 {
		l.log.Warn("expired stale processing payments", zap.Int64("count", n))
	}
	return n, nil
}
