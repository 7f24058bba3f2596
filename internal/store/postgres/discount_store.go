package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/discount"
)

// DiscountStore implements discount.Store. ConsumeUse is the one write
// that matters: a single UPDATE whose WHERE clause carries the max-uses
// bound, so the counter can never overshoot no matter how many checkouts
// race it.
type DiscountStore struct {
	db *sql.DB
}

func NewDiscountStore(db *sql.DB) *DiscountStore {
	return &DiscountStore{db: db}
}

const discountColumns = `id, code, type, value, description, valid_from, valid_until,
	max_uses, uses_count, max_uses_per_user, is_active, created_at, updated_at`

func (s *DiscountStore) Create(ctx context.Context, d *discount.Discount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discounts (`+discountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Code, d.Type, d.Value, d.Description, d.ValidFrom, d.ValidUntil,
		d.MaxUses, d.UsesCount, d.MaxUsesPerUser, d.IsActive, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return discount.ErrCodeExists
		}
		return fmt.Errorf("inserting discount: %w", err)
	}
	return nil
}

func (s *DiscountStore) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discounts WHERE code = $1`, code)
	d, err := scanDiscount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, discount.ErrNotFound
	}
	return d, err
}

func (s *DiscountStore) ListActive(ctx context.Context) ([]discount.Discount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+discountColumns+` FROM discounts
		WHERE is_active AND valid_from <= NOW() AND valid_until >= NOW()
		ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	defer rows.Close()

	var out []discount.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *DiscountStore) ConsumeUse(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discounts SET uses_count = uses_count + 1, updated_at = NOW()
		WHERE id = $1 AND (max_uses IS NULL OR uses_count < max_uses)`,
		id)
	if err != nil {
		return false, fmt.Errorf("consuming discount use: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *DiscountStore) RecordUsage(ctx context.Context, discountID uuid.UUID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_usages (discount_id, user_id) VALUES ($1, $2)`,
		discountID, userID)
	if err != nil {
		return fmt.Errorf("recording discount usage: %w", err)
	}
	return nil
}

func (s *DiscountStore) CountUsagesByUser(ctx context.Context, discountID uuid.UUID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM discount_usages WHERE discount_id = $1 AND user_id = $2`,
		discountID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting discount usages: %w", err)
	}
	return n, nil
}

func scanDiscount(row rowScanner) (*discount.Discount, error) {
	var (
		d       discount.Discount
		maxUses sql.NullInt64
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.Type, &d.Value, &d.Description, &d.ValidFrom, &d.ValidUntil,
		&maxUses, &d.UsesCount, &d.MaxUsesPerUser, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxUses.Valid {
		v := int(maxUses.Int64)
		d.MaxUses = &v
	}
	return &d, nil
}
