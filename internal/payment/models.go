// Package payment owns the Payment state machine and its immutable
// transaction trail. Payments are append-only audit values: fees are frozen
// at creation and a settled payment is never rewritten, only annotated by
// Transactions.
package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
	// StatusDisputed is reachable only via manual ops intervention; kept
	// for wire compatibility with the reporting consumers.
	StatusDisputed Status = "DISPUTED"
	StatusExpired  Status = "EXPIRED"
)

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Payment is one monetary charge attempt and its lifecycle record.
// Invariant: NetAmount = Amount - PlatformFee - ProcessingFee, computed once
// at creation and never recomputed retroactively.
type Payment struct {
	ID                uuid.UUID         `json:"id"`
	StudentID         string            `json:"studentId"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Method            string            `json:"method"`
	Status            Status            `json:"status"`
	CourseID          string            `json:"courseId,omitempty"`
	SubscriptionID    string            `json:"subscriptionId,omitempty"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ExternalReference string            `json:"externalReference,omitempty"`
	GatewayResponse   json.RawMessage   `json:"-"`
	ProcessingFee     decimal.Decimal   `json:"processingFee"`
	PlatformFee       decimal.Decimal   `json:"platformFee"`
	NetAmount         decimal.Decimal   `json:"netAmount"`
	IsRefunded        bool              `json:"isRefunded"`
	RefundedAmount    decimal.Decimal   `json:"refundedAmount"`
	PaidAt            *time.Time        `json:"paidAt,omitempty"`
	RefundedAt        *time.Time        `json:"refundedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
)

// Transaction is an immutable ledger line tied to a Payment: one row per
// settlement event, signed amount (refunds are negative), never mutated or
// deleted.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	PaymentID uuid.UUID       `json:"paymentId"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    Status          `json:"status"`
	GatewayID string          `json:"gatewayId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Statistics aggregates settled money over a reporting window.
type Statistics struct {
	TotalPayments     int             `json:"total_payments"`
	Completed         int             `json:"completed"`
	Failed            int             `json:"failed"`
	Refunded          int             `json:"refunded"`
	SuccessRate       decimal.Decimal `json:"success_rate"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalPlatformFees decimal.Decimal `json:"total_platform_fees"`
	TotalNetAmount    decimal.Decimal `json:"total_net_amount"`
}
