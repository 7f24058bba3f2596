// Package invoice builds invoices from line items and tracks what has
// been paid against them, independent of any single payment's state.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// LineItem is one immutable line of an invoice. Amount is frozen at
// creation as unit price times quantity.
type LineItem struct {
	Description string          `json:"description"`
	CourseID    string          `json:"courseId,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice tracks amount due and paid. AmountPaid only accumulates; the
// status derives from amount due: COMPLETED once nothing is owed,
// PROCESSING while partially paid.
type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	StudentID      string          `json:"studentId"`
	PaymentID      string          `json:"paymentId,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amountPaid"`
	AmountDue      decimal.Decimal `json:"amountDue"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	DueDate        time.Time       `json:"dueDate"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
