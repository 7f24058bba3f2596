package discount

import (
	"context"

	"github.com/google/uuid"
)

// Store abstracts discount persistence. ConsumeUse is the only write path
// for the usage counter and must be a single atomic conditional increment
// in the backing store (UPDATE ... WHERE uses_count < max_uses).
type Store interface {
	// Create inserts a new code; a duplicate code surfaces ErrCodeExists.
	Create(ctx context.Context, d *Discount) error
	GetByCode(ctx context.Context, code string) (*Discount, error)
	ListActive(ctx context.Context) ([]Discount, error)

	// ConsumeUse increments uses_count iff the code is still under its
	// max-uses bound (unbounded codes always increment). Returns false
	// when the bound blocked the increment.
	ConsumeUse(ctx context.Context, id uuid.UUID) (bool, error)

	// RecordUsage appends a (discount, user) usage event; this is what
	// makes per-user limits enforceable, the counter alone cannot.
	RecordUsage(ctx context.Context, discountID uuid.UUID, userID string) error
	CountUsagesByUser(ctx context.Context, discountID uuid.UUID, userID string) (int, error)
}
