package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
)

// TransactionStore implements payment.TransactionStore. The unique
// (payment_id, type) constraint is Confirm's idempotency key: a duplicate
// settlement event inserts nothing.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Append(ctx context.Context, t *payment.Transaction) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, payment_id, type, amount, currency, status, gateway_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_id, type) DO NOTHING`,
		t.ID, t.PaymentID, t.Type, t.Amount, t.Currency, t.Status, t.GatewayID, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TransactionStore) ListForPayment(ctx context.Context, paymentID uuid.UUID) ([]payment.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payment_id, type, amount, currency, status, gateway_id, created_at
		FROM transactions
		WHERE payment_id = $1
		ORDER BY created_at ASC`,
		paymentID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []payment.Transaction
	for rows.Next() {
		var t payment.Transaction
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.Type, &t.Amount, &t.Currency, &t.Status, &t.GatewayID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
