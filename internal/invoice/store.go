package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store abstracts invoice persistence. ApplyPayment must accumulate in the
// store itself (amount_paid = amount_paid + x) rather than writing back a
// value read earlier, so two concurrent partial payments both count.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]Invoice, error)

	// ApplyPayment adds amount to the paid total in one atomic write,
	// rederiving amount due and status, and returns the updated invoice.
	ApplyPayment(ctx context.Context, id uuid.UUID, paymentID string, amount decimal.Decimal, now time.Time) (*Invoice, error)

	// ListOverdue returns unsettled invoices whose due date has passed.
	ListOverdue(ctx context.Context, now time.Time) ([]Invoice, error)
}
