package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
)

// SubscriptionStore implements subscription.Store. The partial unique
// index on (student_id) WHERE is_active is what actually enforces
// one-active-per-student; the insert just surfaces its violation.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, student_id, type, start_date, end_date, trial_end_date,
	is_active, is_cancelled, cancelled_at, auto_renew, next_billing_date,
	price, currency, payment_method, last_payment_id, created_at, updated_at`

func (s *SubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		sub.ID, sub.StudentID, sub.Type, sub.StartDate, sub.EndDate, sub.TrialEndDate,
		sub.IsActive, sub.IsCancelled, sub.CancelledAt, sub.AutoRenew, sub.NextBillingDate,
		sub.Price, sub.Currency, sub.PaymentMethod, sub.LastPaymentID, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return subscription.ErrDuplicateSubscription
		}
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	return sub, err
}

func (s *SubscriptionStore) GetActiveByStudent(ctx context.Context, studentID string) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE student_id = $1 AND is_active`,
		studentID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	return sub, err
}

func (s *SubscriptionStore) Renew(ctx context.Context, id uuid.UUID, endDate, nextBilling time.Time, paymentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			end_date = $2, next_billing_date = $3, last_payment_id = $4,
			is_active = TRUE, is_cancelled = FALSE, cancelled_at = NULL,
			updated_at = NOW()
		WHERE id = $1`,
		id, endDate, nextBilling, paymentID)
	if err != nil {
		return fmt.Errorf("renewing subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (s *SubscriptionStore) Cancel(ctx context.Context, id uuid.UUID, immediate bool, now time.Time) error {
	query := `
		UPDATE subscriptions SET
			is_cancelled = TRUE, cancelled_at = $2, auto_renew = FALSE, updated_at = NOW()
		WHERE id = $1`
	if immediate {
		query = `
		UPDATE subscriptions SET
			is_cancelled = TRUE, cancelled_at = $2, auto_renew = FALSE,
			is_active = FALSE, end_date = $2, updated_at = NOW()
		WHERE id = $1`
	}
	res, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("cancelling subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (s *SubscriptionStore) ClaimRenewal(ctx context.Context, id uuid.UUID, next time.Time, due time.Time) (bool, error) {
	// The due predicate repeats in the UPDATE so overlapping sweeps
	// cannot both claim the same billing period.
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET next_billing_date = $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND NOT is_cancelled AND auto_renew
			AND next_billing_date IS NOT NULL AND next_billing_date <= $3`,
		id, next, due)
	if err != nil {
		return false, fmt.Errorf("claiming renewal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SubscriptionStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	// The predicate repeats in the UPDATE so a Renew racing the sweep
	// keeps its extended end date.
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND end_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SubscriptionStore) DueForRenewal(ctx context.Context, before time.Time) ([]subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE is_active AND NOT is_cancelled AND auto_renew
			AND next_billing_date IS NOT NULL AND next_billing_date <= $1
		ORDER BY next_billing_date ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("querying renewals: %w", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var (
		sub         subscription.Subscription
		trialEnd    sql.NullTime
		cancelledAt sql.NullTime
		nextBilling sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.StudentID, &sub.Type, &sub.StartDate, &sub.EndDate, &trialEnd,
		&sub.IsActive, &sub.IsCancelled, &cancelledAt, &sub.AutoRenew, &nextBilling,
		&sub.Price, &sub.Currency, &sub.PaymentMethod, &sub.LastPaymentID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if trialEnd.Valid {
		sub.TrialEndDate = &trialEnd.Time
	}
	if cancelledAt.Valid {
		sub.CancelledAt = &cancelledAt.Time
	}
	if nextBilling.Valid {
		sub.NextBillingDate = &nextBilling.Time
	}
	return &sub, nil
}
