package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/money"
)

// Ledger validates and consumes discount codes.
type Ledger struct {
	store Store
	log   *zap.Logger
	clock func() time.Time
}

func NewLedger(store Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, log: log, clock: time.Now}
}

// CreateParams describes a new promotional code.
type CreateParams struct {
	Code           string
	Type           string
	Value          decimal.Decimal
	Description    string
	ValidFrom      time.Time
	ValidUntil     time.Time
	MaxUses        *int
	MaxUsesPerUser int
}

// Create registers a new code. Codes are normalized to upper case; a
// duplicate surfaces ErrCodeExists from the store's unique constraint.
func (l *Ledger) Create(ctx context.Context, params CreateParams) (*Discount, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if !params.Value.IsPositive() {
		return nil, fmt.Errorf("%w: value must be positive", ErrInvalidInput)
	}
	if params.Type == money.DiscountPercentage && params.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidInput)
	}
	if !params.ValidUntil.After(params.ValidFrom) {
		return nil, fmt.Errorf("%w: validity window is empty", ErrInvalidInput)
	}
	if params.MaxUses != nil && *params.MaxUses <= 0 {
		return nil, fmt.Errorf("%w: maxUses must be positive when set", ErrInvalidInput)
	}

	now := l.clock()
	d := &Discount{
		ID:             uuid.New(),
		Code:           code,
		Type:           strings.ToUpper(strings.TrimSpace(params.Type)),
		Value:          params.Value,
		Description:    params.Description,
		ValidFrom:      params.ValidFrom,
		ValidUntil:     params.ValidUntil,
		MaxUses:        params.MaxUses,
		MaxUsesPerUser: params.MaxUsesPerUser,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.Create(ctx, d); err != nil {
		return nil, err
	}
	l.log.Info("discount created",
		zap.String("discount_id", d.ID.String()),
		zap.String("code", d.Code))
	return d, nil
}

// Validate checks a code without consuming a slot, so abandoned checkouts
// never burn usage. Returns the discount when it is currently redeemable
// by userID.
func (l *Ledger) Validate(ctx context.Context, code, userID string) (*Discount, error) {
	d, err := l.store.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if err := l.checkRedeemable(ctx, d, userID); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply consumes one use of the code for userID. The counter moves through
// the store's conditional increment, so concurrent applications past the
// max-uses bound lose cleanly instead of overshooting.
func (l *Ledger) Apply(ctx context.Context, code, userID string) (*Discount, error) {
	d, err := l.store.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if err := l.checkRedeemable(ctx, d, userID); err != nil {
		return nil, err
	}

	consumed, err := l.store.ConsumeUse(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("consuming discount use: %w", err)
	}
	if !consumed {
		return nil, ErrExhausted
	}
	d.UsesCount++

	// Usage events back the per-user limit. Losing one degrades that
	// limit, not money correctness, so it does not unwind the consume.
	if userID != "" {
		if err := l.store.RecordUsage(ctx, d.ID, userID); err != nil {
			l.log.Warn("failed to record discount usage event",
				zap.String("discount_id", d.ID.String()),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	l.log.Info("discount applied",
		zap.String("discount_id", d.ID.String()),
		zap.String("code", d.Code),
		zap.Int("uses_count", d.UsesCount))
	return d, nil
}

// ListActive returns currently redeemable codes.
func (l *Ledger) ListActive(ctx context.Context) ([]Discount, error) {
	return l.store.ListActive(ctx)
}

func (l *Ledger) checkRedeemable(ctx context.Context, d *Discount, userID string) error {
	now := l.clock()
	if !d.IsActive {
		return ErrInactive
	}
	if now.Before(d.ValidFrom) {
		return ErrNotYetActive
	}
	if now.After(d.ValidUntil) {
		return ErrExpired
	}
	if d.MaxUses != nil && d.UsesCount >= *d.MaxUses {
		return ErrExhausted
	}
	if d.MaxUsesPerUser > 0 && userID != "" {
		n, err := l.store.CountUsagesByUser(ctx, d.ID, userID)
		if err != nil {
			return fmt.Errorf("counting user redemptions: %w", err)
		}
		if n >= d.MaxUsesPerUser {
			return ErrUserLimitReached
		}
	}
	return nil
}
