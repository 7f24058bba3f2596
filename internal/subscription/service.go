package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
)

// RenewalLookahead is how far ahead the renewal sweep looks for
// subscriptions about to bill.
const RenewalLookahead = 3 * 24 * time.Hour

// Manager owns the subscription lifecycle: create, renew, cancel, and the
// periodic expiry/renewal queries.
type Manager struct {
	store Store
	log   *zap.Logger
	clock func() time.Time
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log, clock: time.Now}
}

// Create starts a subscription for a student. Fails with
// ErrDuplicateSubscription if the student already has an active one.
func (m *Manager) Create(ctx context.Context, studentID, subType, paymentMethod, paymentID string, trialDays int) (*Subscription, error) {
	studentID = strings.TrimSpace(studentID)
	subType = strings.ToUpper(strings.TrimSpace(subType))

	plan, ok := Plans[subType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, subType)
	}

	// Fast-path check; the store's partial unique index is the real guard
	// under concurrency.
	if existing, err := m.store.GetActiveByStudent(ctx, studentID); err == nil && existing != nil {
		return nil, ErrDuplicateSubscription
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := m.clock()
	duration := plan.DurationDays
	if duration <= 0 {
		duration = lifetimeDays
	}
	endDate := now.AddDate(0, 0, duration)

	var trialEnd *time.Time
	if trialDays > 0 {
		t := now.AddDate(0, 0, trialDays)
		trialEnd = &t
	}

	var nextBilling *time.Time
	if recurring(subType) {
		nb := endDate
		nextBilling = &nb
	}

	s := &Subscription{
		ID:              uuid.New(),
		StudentID:       studentID,
		Type:            subType,
		StartDate:       now,
		EndDate:         endDate,
		TrialEndDate:    trialEnd,
		IsActive:        true,
		AutoRenew:       recurring(subType),
		NextBillingDate: nextBilling,
		Price:           plan.Price,
		Currency:        money.DefaultCurrency,
		PaymentMethod:   strings.ToUpper(strings.TrimSpace(paymentMethod)),
		LastPaymentID:   paymentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("subscription created",
		zap.String("subscription_id", s.ID.String()),
		zap.String("student_id", studentID),
		zap.String("type", subType))
	return s, nil
}

// Renew extends the subscription by one plan duration. Must be called only
// after a successful charge; paymentID records that charge.
func (m *Manager) Renew(ctx context.Context, subscriptionID uuid.UUID, paymentID string) (*Subscription, error) {
	s, err := m.store.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	plan, ok := Plans[s.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, s.Type)
	}
	duration := plan.DurationDays
	if duration <= 0 {
		duration = lifetimeDays
	}

	newEnd := s.EndDate.AddDate(0, 0, duration)
	if err := m.store.Renew(ctx, subscriptionID, newEnd, newEnd, paymentID); err != nil {
		return nil, fmt.Errorf("renewing subscription: %w", err)
	}

	m.log.Info("subscription renewed",
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("payment_id", paymentID),
		zap.Time("new_end_date", newEnd))
	return m.store.Get(ctx, subscriptionID)
}

// Cancel stops auto-renewal. Immediate cancellation also revokes access
// now; otherwise access persists until natural expiry.
func (m *Manager) Cancel(ctx context.Context, subscriptionID uuid.UUID, immediate bool) (*Subscription, error) {
	if _, err := m.store.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}
	if err := m.store.Cancel(ctx, subscriptionID, immediate, m.clock()); err != nil {
		return nil, fmt.Errorf("cancelling subscription: %w", err)
	}
	m.log.Info("subscription cancelled",
		zap.String("subscription_id", subscriptionID.String()),
		zap.Bool("immediate", immediate))
	return m.store.Get(ctx, subscriptionID)
}

// Get fetches one subscription.
func (m *Manager) Get(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error) {
	return m.store.Get(ctx, subscriptionID)
}

// GetByStudent fetches a student's active subscription.
func (m *Manager) GetByStudent(ctx context.Context, studentID string) (*Subscription, error) {
	return m.store.GetActiveByStudent(ctx, studentID)
}

// ExpireDue deactivates subscriptions past their end date. Safe under
// re-entrant overlap: the store re-checks the predicate at write time.
func (m *Manager) ExpireDue(ctx context.Context) (int64, error) {
	n, err := m.store.ExpireDue(ctx, m.clock())
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions: %w", err)
	}
	if n > 0 {
		m.log.Info("expired subscriptions", zap.Int64("count", n))
	}
	return n, nil
}

// DueForRenewal lists subscriptions to charge within the lookahead window.
// The caller drives one payment per item; one failing charge must not
// abort the others.
func (m *Manager) DueForRenewal(ctx context.Context) ([]Subscription, error) {
	return m.store.DueForRenewal(ctx, m.clock().Add(RenewalLookahead))
}

// ClaimRenewal reserves a due subscription for exactly one renewal charge
// by pushing its next billing date one plan period forward. The guarded
// write returns false when a concurrent or overlapping sweep already
// claimed it, so the same subscription is never charged twice per period.
// Renew later sets the same billing date when the charge settles; if it
// never settles, the end date still governs access and ExpireDue closes
// the subscription.
func (m *Manager) ClaimRenewal(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	s, err := m.store.Get(ctx, subscriptionID)
	if err != nil {
		return false, err
	}

	plan, ok := Plans[s.Type]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPlan, s.Type)
	}
	duration := plan.DurationDays
	if duration <= 0 {
		duration = lifetimeDays
	}

	next := s.EndDate.AddDate(0, 0, duration)
	claimed, err := m.store.ClaimRenewal(ctx, subscriptionID, next, m.clock().Add(RenewalLookahead))
	if err != nil {
		return false, fmt.Errorf("claiming renewal: %w", err)
	}
	return claimed, nil
}
