package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
)

// PaymentLedger is the slice of the payment service the reconciler drives.
type PaymentLedger interface {
	Confirm(ctx context.Context, paymentID uuid.UUID, gatewayTxnID string) (*payment.Payment, bool, error)
	Fail(ctx context.Context, paymentID uuid.UUID) error
}

// SubscriptionRenewer extends a subscription after its renewal charge
// settles.
type SubscriptionRenewer interface {
	Renew(ctx context.Context, subscriptionID uuid.UUID, paymentID string) (*subscription.Subscription, error)
}

// InvoiceSettler records settled money against an invoice.
type InvoiceSettler interface {
	MarkPaid(ctx context.Context, invoiceID uuid.UUID, paymentID string, amount decimal.Decimal) (*invoice.Invoice, error)
}

// Reconciler routes normalized provider events onto ledger transitions.
// Confirm/Fail are the primary effects; subscription renewal and invoice
// settlement ride along as secondary effects that log on failure instead
// of failing the webhook, since the money state is already correct and the
// provider retrying would not fix them.
type Reconciler struct {
	payments PaymentLedger
	subs     SubscriptionRenewer
	invoices InvoiceSettler
	log      *zap.Logger
}

func NewReconciler(payments PaymentLedger, subs SubscriptionRenewer, invoices InvoiceSettler, log *zap.Logger) *Reconciler {
	return &Reconciler{payments: payments, subs: subs, invoices: invoices, log: log}
}

// Handle applies one verified event. Returning nil acknowledges the event
// to the provider; an error triggers a provider-side retry, so only
// recoverable internal failures may return one. Replays and out-of-order
// delivery are absorbed by the ledger's idempotent transitions.
func (r *Reconciler) Handle(ctx context.Context, ev *NormalizedEvent) error {
	switch ev.Kind {
	case KindCaptureSucceeded:
		return r.handleCaptureSucceeded(ctx, ev)
	case KindCaptureFailed:
		return r.handleCaptureFailed(ctx, ev)
	case KindRefund:
		// Refunds only ever originate from the ledger itself; the event
		// is an audit confirmation, not a command.
		r.log.Info("refund confirmed by provider",
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.ID),
			zap.String("external_id", ev.ExternalID),
			zap.String("payment_id", ev.PaymentID))
		return nil
	default:
		r.log.Info("acknowledged unhandled webhook event",
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.ID))
		return nil
	}
}

func (r *Reconciler) handleCaptureSucceeded(ctx context.Context, ev *NormalizedEvent) error {
	paymentID, ok := r.paymentID(ev)
	if !ok {
		return nil
	}

	p, moved, err := r.payments.Confirm(ctx, paymentID, ev.ExternalID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			r.log.Error("capture event for unknown payment",
				zap.String("payment_id", paymentID.String()),
				zap.String("event_id", ev.ID))
			return nil
		}
		return fmt.Errorf("confirming payment %s: %w", paymentID, err)
	}
	if !moved {
		// Duplicate delivery: the transition and its follow-on effects
		// already ran. Renew and MarkPaid both accumulate, so replaying
		// them would extend the period or settle the invoice twice.
		r.log.Info("duplicate capture event acknowledged",
			zap.String("payment_id", p.ID.String()),
			zap.String("event_id", ev.ID))
		return nil
	}

	if r.subs != nil && p.Metadata["purpose"] == "subscription_renewal" && p.SubscriptionID != "" {
		if subID, err := uuid.Parse(p.SubscriptionID); err == nil {
			if _, err := r.subs.Renew(ctx, subID, p.ID.String()); err != nil {
				r.log.Warn("payment confirmed but subscription renewal failed",
					zap.String("payment_id", p.ID.String()),
					zap.String("subscription_id", p.SubscriptionID),
					zap.Error(err))
			}
		}
	}

	if r.invoices != nil && p.Metadata["invoice_id"] != "" {
		if invID, err := uuid.Parse(p.Metadata["invoice_id"]); err == nil {
			if _, err := r.invoices.MarkPaid(ctx, invID, p.ID.String(), p.Amount); err != nil {
				r.log.Warn("payment confirmed but invoice settlement failed",
					zap.String("payment_id", p.ID.String()),
					zap.String("invoice_id", p.Metadata["invoice_id"]),
					zap.Error(err))
			}
		}
	}

	return nil
}

func (r *Reconciler) handleCaptureFailed(ctx context.Context, ev *NormalizedEvent) error {
	paymentID, ok := r.paymentID(ev)
	if !ok {
		return nil
	}
	if err := r.payments.Fail(ctx, paymentID); err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			r.log.Error("failure event for unknown payment",
				zap.String("payment_id", paymentID.String()),
				zap.String("event_id", ev.ID))
			return nil
		}
		return fmt.Errorf("failing payment %s: %w", paymentID, err)
	}
	return nil
}

// paymentID extracts our payment id from the event metadata. An event
// without one cannot be routed and retrying will never fix it, so it is
// logged and acknowledged.
func (r *Reconciler) paymentID(ev *NormalizedEvent) (uuid.UUID, bool) {
	if ev.PaymentID == "" {
		r.log.Error("webhook event carries no payment id",
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.ID),
			zap.String("external_id", ev.ExternalID))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(ev.PaymentID)
	if err != nil {
		r.log.Error("webhook event carries malformed payment id",
			zap.String("provider", ev.Provider),
			zap.String("event_id", ev.ID),
			zap.String("payment_id", ev.PaymentID))
		return uuid.Nil, false
	}
	return id, true
}
