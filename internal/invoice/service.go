package invoice

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
)

const defaultDueDays = 30

// Manager builds invoices and settles payments against them.
type Manager struct {
	store Store
	log   *zap.Logger
	clock func() time.Time
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log, clock: time.Now}
}

// ItemParams is one requested invoice line.
type ItemParams struct {
	Description string
	CourseID    string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateParams describes a new invoice.
type CreateParams struct {
	StudentID      string
	Items          []ItemParams
	TaxCountry     string
	DiscountAmount decimal.Decimal
	DueDays        int
	Currency       string
	PaymentID      string
	SubscriptionID string
	Notes          string
}

// CreateInvoice snapshots the line items and freezes subtotal, tax and
// total. The invoice number is a date prefix plus a random suffix; no
// retry loop, collisions are not a realistic concern at this volume.
func (m *Manager) CreateInvoice(ctx context.Context, params CreateParams) (*Invoice, error) {
	studentID := strings.TrimSpace(params.StudentID)
	if studentID == "" {
		return nil, fmt.Errorf("%w: studentId is required", ErrInvalidInput)
	}
	if len(params.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrInvalidInput)
	}
	if params.DiscountAmount.IsNegative() {
		return nil, fmt.Errorf("%w: discount cannot be negative", ErrInvalidInput)
	}

	subtotal := decimal.Zero
	items := make([]LineItem, 0, len(params.Items))
	for i, it := range params.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidInput, i)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d has negative price", ErrInvalidInput, i)
		}
		amount := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		items = append(items, LineItem{
			Description: it.Description,
			CourseID:    it.CourseID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      amount,
		})
		subtotal = subtotal.Add(amount)
	}
	subtotal = subtotal.Round(2)

	tax := money.Tax(subtotal, strings.ToUpper(strings.TrimSpace(params.TaxCountry)), money.DefaultTaxRates)
	total := subtotal.Add(tax).Sub(params.DiscountAmount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero.Round(2)
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = money.DefaultCurrency
	}
	dueDays := params.DueDays
	if dueDays <= 0 {
		dueDays = defaultDueDays
	}

	now := m.clock()
	inv := &Invoice{
		ID:             uuid.New(),
		InvoiceNumber:  newInvoiceNumber(now),
		StudentID:      studentID,
		PaymentID:      params.PaymentID,
		SubscriptionID: params.SubscriptionID,
		Items:          items,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: params.DiscountAmount.Round(2),
		Total:          total,
		AmountPaid:     decimal.Zero.Round(2),
		AmountDue:      total,
		Currency:       currency,
		Status:         StatusPending,
		DueDate:        now.AddDate(0, 0, dueDays),
		Notes:          params.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.Create(ctx, inv); err != nil {
		return nil, err
	}
	m.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("student_id", studentID),
		zap.String("total", inv.Total.StringFixed(2)))
	return inv, nil
}

// MarkPaid records a (possibly partial) payment against the invoice.
// Accumulation happens in the store; the invoice lands on COMPLETED once
// nothing remains due, PROCESSING otherwise.
func (m *Manager) MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, amount decimal.Decimal) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: paid amount must be positive", ErrInvalidInput)
	}
	inv, err := m.store.ApplyPayment(ctx, id, paymentID, amount.Round(2), m.clock())
	if err != nil {
		return nil, err
	}
	m.log.Info("invoice payment recorded",
		zap.String("invoice_id", id.String()),
		zap.String("payment_id", paymentID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", string(inv.Status)))
	return inv, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return m.store.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

func (m *Manager) ListByStudent(ctx context.Context, studentID string, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListByStudent(ctx, studentID, limit)
}

// GetOverdue lists unsettled invoices past their due date.
func (m *Manager) GetOverdue(ctx context.Context) ([]Invoice, error) {
	return m.store.ListOverdue(ctx, m.clock())
}

func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%06d", now.Format("20060102"), rand.Intn(1000000))
}
