package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store abstracts subscription persistence. Create must enforce the
// one-active-per-student invariant atomically (a partial unique index in
// postgres) and surface violations as ErrDuplicateSubscription; the
// service's pre-check only exists for a friendlier fast path.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetActiveByStudent(ctx context.Context, studentID string) (*Subscription, error)

	// Renew extends the subscription in one write: new end date, new
	// billing date, last payment id, and reactivation flags.
	Renew(ctx context.Context, id uuid.UUID, endDate time.Time, nextBilling time.Time, paymentID string) error

	// Cancel marks the subscription cancelled; immediate also deactivates
	// it and cuts the end date to now.
	Cancel(ctx context.Context, id uuid.UUID, immediate bool, now time.Time) error

	// ClaimRenewal advances the next billing date to next, re-checking at
	// write time that the subscription is still auto-renewing and due
	// before the horizon. Returns false when nothing matched, meaning a
	// concurrent sweep already claimed the charge.
	ClaimRenewal(ctx context.Context, id uuid.UUID, next time.Time, due time.Time) (bool, error)

	// ExpireDue deactivates active subscriptions whose end date has
	// passed, re-checking the predicate at write time so a concurrent
	// Renew is never clobbered. Returns the number of rows expired.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// DueForRenewal lists active, non-cancelled, auto-renewing
	// subscriptions with a next billing date at or before the horizon.
	DueForRenewal(ctx context.Context, before time.Time) ([]Subscription, error)
}
