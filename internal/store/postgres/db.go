// Package postgres implements the service's store interfaces on
// database/sql over lib/pq. Every guarded state transition is a single
// conditional UPDATE; the row predicate, not an application lock, is what
// keeps concurrent writers safe.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects a pooled handle and verifies it with a ping.
func Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		course_id TEXT NOT NULL DEFAULT '',
		subscription_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		external_reference TEXT NOT NULL DEFAULT '',
		gateway_response JSONB,
		processing_fee NUMERIC(12,2) NOT NULL,
		platform_fee NUMERIC(12,2) NOT NULL,
		net_amount NUMERIC(12,2) NOT NULL,
		is_refunded BOOLEAN NOT NULL DEFAULT FALSE,
		refunded_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		paid_at TIMESTAMPTZ,
		refunded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_student ON payments (student_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments (status)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		payment_id UUID NOT NULL REFERENCES payments (id),
		type TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (payment_id, type)
	)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		trial_end_date TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		cancelled_at TIMESTAMPTZ,
		auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
		next_billing_date TIMESTAMPTZ,
		price NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		payment_method TEXT NOT NULL DEFAULT '',
		last_payment_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_subscription
		ON subscriptions (student_id) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_billing
		ON subscriptions (next_billing_date) WHERE is_active AND auto_renew`,

	`CREATE TABLE IF NOT EXISTS discounts (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		value NUMERIC(12,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		valid_from TIMESTAMPTZ NOT NULL,
		valid_until TIMESTAMPTZ NOT NULL,
		max_uses INTEGER,
		uses_count INTEGER NOT NULL DEFAULT 0,
		max_uses_per_user INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (max_uses IS NULL OR uses_count <= max_uses)
	)`,

	`CREATE TABLE IF NOT EXISTS discount_usages (
		id BIGSERIAL PRIMARY KEY,
		discount_id UUID NOT NULL REFERENCES discounts (id),
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_discount_usages_user
		ON discount_usages (discount_id, user_id)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		student_id TEXT NOT NULL,
		payment_id TEXT NOT NULL DEFAULT '',
		subscription_id TEXT NOT NULL DEFAULT '',
		items JSONB NOT NULL,
		subtotal NUMERIC(12,2) NOT NULL,
		tax_amount NUMERIC(12,2) NOT NULL,
		discount_amount NUMERIC(12,2) NOT NULL,
		total NUMERIC(12,2) NOT NULL,
		amount_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
		amount_due NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		paid_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_student ON invoices (student_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_due ON invoices (due_date) WHERE status IN ('PENDING','PROCESSING')`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
