package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription is one student's recurring access record.
// Invariant (store-enforced): at most one active subscription per student.
type Subscription struct {
	ID              uuid.UUID       `json:"id"`
	StudentID       string          `json:"studentId"`
	Type            string          `json:"type"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	TrialEndDate    *time.Time      `json:"trialEndDate,omitempty"`
	IsActive        bool            `json:"isActive"`
	IsCancelled     bool            `json:"isCancelled"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
	AutoRenew       bool            `json:"autoRenew"`
	NextBillingDate *time.Time      `json:"nextBillingDate,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"paymentMethod"`
	LastPaymentID   string          `json:"lastPaymentId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
