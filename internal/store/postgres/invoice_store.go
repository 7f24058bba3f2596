package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
)

// InvoiceStore implements invoice.Store. ApplyPayment accumulates in SQL
// (amount_paid + x) so two concurrent partial payments both land instead
// of one clobbering the other.
type InvoiceStore struct {
	db *sql.DB
}

func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, invoice_number, student_id, payment_id, subscription_id, items,
	subtotal, tax_amount, discount_amount, total, amount_paid, amount_due,
	currency, status, due_date, paid_at, notes, created_at, updated_at`

func (s *InvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encoding invoice items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		inv.ID, inv.InvoiceNumber, inv.StudentID, inv.PaymentID, inv.SubscriptionID, items,
		inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.Total, inv.AmountPaid, inv.AmountDue,
		inv.Currency, inv.Status, inv.DueDate, inv.PaidAt, inv.Notes, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	return nil
}

func (s *InvoiceStore) Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	return inv, err
}

func (s *InvoiceStore) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	return inv, err
}

func (s *InvoiceStore) ListByStudent(ctx context.Context, studentID string, limit int) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (s *InvoiceStore) ApplyPayment(ctx context.Context, id uuid.UUID, paymentID string, amount decimal.Decimal, now time.Time) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE invoices SET
			amount_paid = amount_paid + $2,
			amount_due = total - (amount_paid + $2),
			payment_id = $3,
			status = CASE WHEN total - (amount_paid + $2) <= 0 THEN 'COMPLETED' ELSE 'PROCESSING' END,
			paid_at = CASE WHEN total - (amount_paid + $2) <= 0 THEN $4 ELSE paid_at END,
			updated_at = $4
		WHERE id = $1
		RETURNING `+invoiceColumns,
		id, amount, paymentID, now)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("applying invoice payment: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) ListOverdue(ctx context.Context, now time.Time) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ('PENDING', 'PROCESSING') AND due_date < $1
		ORDER BY due_date ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("listing overdue invoices: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows *sql.Rows) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var (
		inv    invoice.Invoice
		items  []byte
		paidAt sql.NullTime
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.StudentID, &inv.PaymentID, &inv.SubscriptionID, &items,
		&inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.Total, &inv.AmountPaid, &inv.AmountDue,
		&inv.Currency, &inv.Status, &inv.DueDate, &paidAt, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.Items); err != nil {
			return nil, fmt.Errorf("decoding invoice items: %w", err)
		}
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}
