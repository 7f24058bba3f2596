// Package discount validates and atomically consumes promotional codes.
// The usage counter only ever moves through a conditional increment bounded
// by the code's max uses; a read-then-write on the counter is never safe
// under concurrent checkouts.
package discount

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount is one promotional code. Codes are stored upper-cased; lookups
// normalize the same way.
type Discount struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Type           string          `json:"type"`
	Value          decimal.Decimal `json:"value"`
	Description    string          `json:"description,omitempty"`
	ValidFrom      time.Time       `json:"validFrom"`
	ValidUntil     time.Time       `json:"validUntil"`
	MaxUses        *int            `json:"maxUses,omitempty"`
	UsesCount      int             `json:"usesCount"`
	MaxUsesPerUser int             `json:"maxUsesPerUser"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
