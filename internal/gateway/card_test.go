package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), minorUnits(decimal.RequireFromString("100.00"), "USD"))
	assert.Equal(t, int64(2999), minorUnits(decimal.RequireFromString("29.99"), "EUR"))
	// Zero-decimal currencies are already in their smallest unit.
	assert.Equal(t, int64(500), minorUnits(decimal.NewFromInt(500), "JPY"))
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "100.00", majorUnits(10000, "USD").StringFixed(2))
	assert.Equal(t, "500.00", majorUnits(500, "JPY").StringFixed(2))
}

func TestCardStatusNormalization(t *testing.T) {
	g := &CardGateway{log: zap.NewNop()}

	cases := map[stripe.PaymentIntentStatus]Status{
		stripe.PaymentIntentStatusRequiresPaymentMethod: StatusPending,
		stripe.PaymentIntentStatusRequiresConfirmation:  StatusPending,
		stripe.PaymentIntentStatusRequiresAction:        StatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:       StatusProcessing,
		stripe.PaymentIntentStatusProcessing:            StatusProcessing,
		stripe.PaymentIntentStatusSucceeded:             StatusCompleted,
		stripe.PaymentIntentStatusCanceled:              StatusCancelled,
	}
	for native, want := range cases {
		assert.Equal(t, want, g.normalizeStatus(native), "status %s", native)
	}

	// Unmapped provider statuses default to PENDING instead of being
	// dropped.
	assert.Equal(t, StatusPending, g.normalizeStatus("some_future_status"))
}
