// Package gateway abstracts the external payment processors behind one
// uniform Adapter contract. The ledger never sees a provider-native status
// or error; each adapter owns the translation table for its provider.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the normalized provider status. Every provider-native value is
// mapped through the adapter's own table; unmapped values default to
// StatusPending and are logged, never silently dropped.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
)

// Intent is the provider-side record of a charge attempt.
type Intent struct {
	ExternalID   string
	Status       Status
	ClientSecret string // auth token handed to the checkout client, if any
	Raw          json.RawMessage
}

// RefundResult reports a provider-side refund.
type RefundResult struct {
	ExternalID string
	Status     Status
	Amount     decimal.Decimal
}

// SubscriptionResult reports a provider-side recurring billing agreement.
type SubscriptionResult struct {
	ExternalID       string
	Status           string
	CurrentPeriodEnd time.Time
}

// Adapter is the uniform contract every payment provider implements.
// Amounts cross this boundary in major units; converting to the provider's
// native minor-unit convention is the adapter's responsibility.
//
// All calls are blocking network I/O; callers must never invoke them while
// holding a data-store transaction open.
type Adapter interface {
	// Name identifies the provider ("card", "wallet") in logs and events.
	Name() string

	// CreateIntent registers a charge attempt with the provider.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)

	// Confirm finalizes a charge. Repeated calls for the same externalID
	// return the same terminal state with no further side effects.
	Confirm(ctx context.Context, externalID string) (*Intent, error)

	// Refund reverses a charge, partially if amount is non-nil. The
	// currency is the payment's currency and drives the provider's
	// minor-unit conversion. Fails with ErrRefundExceedsCaptured if
	// amount exceeds the captured total.
	Refund(ctx context.Context, externalID string, amount *decimal.Decimal, currency string) (*RefundResult, error)

	// Status fetches the normalized state of a charge.
	Status(ctx context.Context, externalID string) (Status, error)

	// CreateCustomer registers a billing profile with the provider.
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)

	// CreateSubscription starts a provider-managed recurring charge.
	CreateSubscription(ctx context.Context, customerID, planID string, metadata map[string]string) (*SubscriptionResult, error)

	// CancelSubscription stops a provider-managed recurring charge.
	CancelSubscription(ctx context.Context, externalID string) error
}
