package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store abstracts payment persistence. The conditional transition methods
// return false (not an error) when the guarded predicate did not match any
// row; the ledger decides whether that is an idempotent no-op or an illegal
// transition. The backing store must provide per-row atomic conditional
// updates; that is the only concurrency guarantee the state machine relies
// on.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByStudent(ctx context.Context, studentID string, status Status, limit int) ([]Payment, error)

	// MarkProcessing transitions PENDING → PROCESSING.
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)

	// SetGatewayRef records the provider-assigned external id and raw
	// response after a successful CreateIntent.
	SetGatewayRef(ctx context.Context, id uuid.UUID, externalRef string, raw []byte) error

	// MarkCompleted transitions PENDING/PROCESSING → COMPLETED in one
	// guarded write.
	MarkCompleted(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)

	// MarkFailed transitions any non-terminal state → FAILED.
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkRefunded transitions COMPLETED → REFUNDED, recording the amount.
	MarkRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)

	// ExpireStaleProcessing sets PROCESSING payments older than cutoff to
	// EXPIRED, re-checking the predicate at write time.
	ExpireStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)

	Statistics(ctx context.Context, from, to time.Time) (*Statistics, error)
}

// TransactionStore persists the immutable settlement trail.
type TransactionStore interface {
	// Append inserts a transaction unless one with the same
	// (payment id, type) already exists; the bool reports whether a new
	// row was written. This is the idempotency key for Confirm.
	Append(ctx context.Context, t *Transaction) (bool, error)

	ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]Transaction, error)
}
