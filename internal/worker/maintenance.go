// Package worker holds the periodic maintenance sweeps: subscription
// expiry, renewal charging, overdue invoice reminders, stale payment
// expiry, and the monthly report. Sweeps isolate per-item failures and
// never propagate an error that would abort the scheduler loop.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
)

// Summary is the aggregated outcome of one sweep run.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// PaymentLedger is the slice of the payment service the sweeps drive.
type PaymentLedger interface {
	Create(ctx context.Context, params payment.CreateParams) (*payment.Payment, error)
	Process(ctx context.Context, paymentID uuid.UUID, gatewayType string) (*payment.Payment, error)
	ExpireStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	Statistics(ctx context.Context, from, to time.Time) (*payment.Statistics, error)
}

// SubscriptionManager is the slice of the subscription service the sweeps
// drive.
type SubscriptionManager interface {
	ExpireDue(ctx context.Context) (int64, error)
	DueForRenewal(ctx context.Context) ([]subscription.Subscription, error)
	ClaimRenewal(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
}

// InvoiceManager lists invoices needing a reminder.
type InvoiceManager interface {
	GetOverdue(ctx context.Context) ([]invoice.Invoice, error)
}

// Notifier dispatches overdue reminders. Notification delivery lives in
// another service; this is its contract.
type Notifier interface {
	SendOverdueReminder(ctx context.Context, inv invoice.Invoice) error
}

// LogNotifier is the default Notifier: it only records that a reminder
// would have been sent.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) SendOverdueReminder(_ context.Context, inv invoice.Invoice) error {
	n.Log.Info("overdue invoice reminder",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("student_id", inv.StudentID),
		zap.String("amount_due", inv.AmountDue.StringFixed(2)))
	return nil
}

// StaleProcessingAfter is how long a payment may sit in PROCESSING with no
// webhook before the sweep expires it.
const StaleProcessingAfter = 24 * time.Hour

// Maintenance bundles the scheduler-facing sweep entry points.
type Maintenance struct {
	payments PaymentLedger
	subs     SubscriptionManager
	invoices InvoiceManager
	notifier Notifier
	log      *zap.Logger
	clock    func() time.Time
}

func NewMaintenance(payments PaymentLedger, subs SubscriptionManager, invoices InvoiceManager, notifier Notifier, log *zap.Logger) *Maintenance {
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &Maintenance{
		payments: payments,
		subs:     subs,
		invoices: invoices,
		notifier: notifier,
		log:      log,
		clock:    time.Now,
	}
}

// guard absorbs a panic from a sweep body so one bad run can never take
// the scheduler loop down with it.
func (m *Maintenance) guard(name string, summary *Summary) {
	if r := recover(); r != nil {
		summary.Failed++
		m.log.Error("maintenance sweep panicked",
			zap.String("sweep", name),
			zap.Any("panic", r))
	}
}

// ExpireSubscriptions deactivates subscriptions past their end date.
func (m *Maintenance) ExpireSubscriptions(ctx context.Context) (summary Summary) {
	defer m.guard("expire_subscriptions", &summary)

	n, err := m.subs.ExpireDue(ctx)
	if err != nil {
		m.log.Error("subscription expiry sweep failed", zap.Error(err))
		summary.Failed++
		return summary
	}
	summary.Processed = int(n)
	summary.Succeeded = int(n)
	return summary
}

// RenewSubscriptions charges every subscription inside the renewal
// lookahead. Each item gets its own payment; one declined card never
// aborts the rest of the batch. The charge settles asynchronously: the
// webhook reconciler performs the actual Renew once the capture confirms.
func (m *Maintenance) RenewSubscriptions(ctx context.Context) (summary Summary) {
	defer m.guard("renew_subscriptions", &summary)

	due, err := m.subs.DueForRenewal(ctx)
	if err != nil {
		m.log.Error("renewal sweep query failed", zap.Error(err))
		summary.Failed++
		return summary
	}

	for _, sub := range due {
		claimed, err := m.subs.ClaimRenewal(ctx, sub.ID)
		if err != nil {
			summary.Processed++
			summary.Failed++
			m.log.Warn("renewal claim failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		if !claimed {
			// An overlapping sweep already issued this period's charge.
			continue
		}
		summary.Processed++
		if err := m.chargeRenewal(ctx, sub); err != nil {
			summary.Failed++
			m.log.Warn("renewal charge failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("student_id", sub.StudentID),
				zap.Error(err))
			continue
		}
		summary.Succeeded++
	}

	if summary.Processed > 0 {
		m.log.Info("renewal sweep finished",
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed))
	}
	return summary
}

func (m *Maintenance) chargeRenewal(ctx context.Context, sub subscription.Subscription) error {
	currency := sub.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	p, err := m.payments.Create(ctx, payment.CreateParams{
		StudentID:      sub.StudentID,
		Amount:         sub.Price,
		Currency:       currency,
		Method:         sub.PaymentMethod,
		SubscriptionID: sub.ID.String(),
		Description:    "Subscription renewal: " + sub.Type,
		Metadata:       map[string]string{"purpose": "subscription_renewal"},
	})
	if err != nil {
		return err
	}
	_, err = m.payments.Process(ctx, p.ID, sub.PaymentMethod)
	return err
}

// SendOverdueReminders notifies students about unsettled invoices past
// their due date.
func (m *Maintenance) SendOverdueReminders(ctx context.Context) (summary Summary) {
	defer m.guard("send_overdue_reminders", &summary)

	overdue, err := m.invoices.GetOverdue(ctx)
	if err != nil {
		m.log.Error("overdue invoice query failed", zap.Error(err))
		summary.Failed++
		return summary
	}

	for _, inv := range overdue {
		summary.Processed++
		if err := m.notifier.SendOverdueReminder(ctx, inv); err != nil {
			summary.Failed++
			m.log.Warn("overdue reminder failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.Error(err))
			continue
		}
		summary.Succeeded++
	}
	return summary
}

// ExpireStalePayments resolves payments stuck in PROCESSING whose webhook
// never arrived.
func (m *Maintenance) ExpireStalePayments(ctx context.Context) (summary Summary) {
	defer m.guard("expire_stale_payments", &summary)

	n, err := m.payments.ExpireStaleProcessing(ctx, StaleProcessingAfter)
	if err != nil {
		m.log.Error("stale payment sweep failed", zap.Error(err))
		summary.Failed++
		return summary
	}
	summary.Processed = int(n)
	summary.Succeeded = int(n)
	return summary
}

// GenerateMonthlyReport aggregates last month's settled money and logs it.
func (m *Maintenance) GenerateMonthlyReport(ctx context.Context) (summary Summary) {
	defer m.guard("generate_monthly_report", &summary)

	now := m.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := monthStart.AddDate(0, -1, 0)

	stats, err := m.payments.Statistics(ctx, from, monthStart)
	if err != nil {
		m.log.Error("monthly report query failed", zap.Error(err))
		summary.Failed++
		return summary
	}

	summary.Processed = stats.TotalPayments
	summary.Succeeded = stats.TotalPayments
	m.log.Info("monthly payment report",
		zap.String("period_start", from.Format("2006-01-02")),
		zap.String("period_end", monthStart.Format("2006-01-02")),
		zap.Int("total_payments", stats.TotalPayments),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Int("refunded", stats.Refunded),
		zap.String("success_rate", stats.SuccessRate.StringFixed(2)),
		zap.String("total_amount", stats.TotalAmount.StringFixed(2)),
		zap.String("total_platform_fees", stats.TotalPlatformFees.StringFixed(2)),
		zap.String("total_net_amount", stats.TotalNetAmount.StringFixed(2)))
	return summary
}
