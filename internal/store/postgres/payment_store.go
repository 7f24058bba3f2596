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

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
)

// PaymentStore implements payment.Store.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, student_id, amount, currency, method, status, course_id,
	subscription_id, description, metadata, external_reference, gateway_response,
	processing_fee, platform_fee, net_amount, is_refunded, refunded_amount,
	paid_at, refunded_at, created_at, updated_at`

func (s *PaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		p.ID, p.StudentID, p.Amount, p.Currency, p.Method, p.Status, p.CourseID,
		p.SubscriptionID, p.Description, metadata, p.ExternalReference, nullBytes(p.GatewayResponse),
		p.ProcessingFee, p.PlatformFee, p.NetAmount, p.IsRefunded, p.RefundedAmount,
		p.PaidAt, p.RefundedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrNotFound
	}
	return p, err
}

func (s *PaymentStore) ListByStudent(ctx context.Context, studentID string, status payment.Status, limit int) ([]payment.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE student_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		studentID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var out []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PaymentStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, `
		UPDATE payments SET status = 'PROCESSING', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id)
}

func (s *PaymentStore) SetGatewayRef(ctx context.Context, id uuid.UUID, externalRef string, raw []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET external_reference = $2, gateway_response = $3, updated_at = NOW()
		WHERE id = $1`,
		id, externalRef, nullBytes(raw))
	if err != nil {
		return fmt.Errorf("recording gateway reference: %w", err)
	}
	return nil
}

func (s *PaymentStore) MarkCompleted(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	return s.transition(ctx, `
		UPDATE payments SET status = 'COMPLETED', paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')`, id, paidAt)
}

func (s *PaymentStore) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, `
		UPDATE payments SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED', 'REFUNDED', 'CANCELLED', 'EXPIRED')`, id)
}

func (s *PaymentStore) MarkRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	return s.transition(ctx, `
		UPDATE payments SET status = 'REFUNDED', is_refunded = TRUE,
			refunded_amount = $2, refunded_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'COMPLETED'`, id, amount, at)
}

func (s *PaymentStore) ExpireStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = 'EXPIRED', updated_at = NOW()
		WHERE status = 'PROCESSING' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring stale payments: %w", err)
	}
	return res.RowsAffected()
}

func (s *PaymentStore) Statistics(ctx context.Context, from, to time.Time) (*payment.Statistics, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'REFUNDED'),
			COALESCE(SUM(amount) FILTER (WHERE status IN ('COMPLETED', 'REFUNDED')), 0),
			COALESCE(SUM(platform_fee) FILTER (WHERE status IN ('COMPLETED', 'REFUNDED')), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE status IN ('COMPLETED', 'REFUNDED')), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)

	var stats payment.Statistics
	if err := row.Scan(
		&stats.TotalPayments, &stats.Completed, &stats.Failed, &stats.Refunded,
		&stats.TotalAmount, &stats.TotalPlatformFees, &stats.TotalNetAmount,
	); err != nil {
		return nil, fmt.Errorf("aggregating payment statistics: %w", err)
	}
	if stats.TotalPayments > 0 {
		stats.SuccessRate = decimal.NewFromInt(int64(stats.Completed)).
			Div(decimal.NewFromInt(int64(stats.TotalPayments))).
			Mul(decimal.NewFromInt(100)).Round(2)
	}
	return &stats, nil
}

func (s *PaymentStore) transition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p        payment.Payment
		metadata []byte
		response []byte
		paidAt   sql.NullTime
		refunded sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.StudentID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.CourseID,
		&p.SubscriptionID, &p.Description, &metadata, &p.ExternalReference, &response,
		&p.ProcessingFee, &p.PlatformFee, &p.NetAmount, &p.IsRefunded, &p.RefundedAmount,
		&paidAt, &refunded, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding payment metadata: %w", err)
		}
	}
	p.GatewayResponse = response
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	if refunded.Valid {
		p.RefundedAt = &refunded.Time
	}
	return &p, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return b, nil
}

// nullBytes keeps empty raw payloads as SQL NULL instead of the invalid
// empty JSONB value.
func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
