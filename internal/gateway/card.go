package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

// CardGateway drives the card processor through its official SDK.
type CardGateway struct {
	client *client.API
	log    *zap.Logger
}

func NewCardGateway(secretKey string, log *zap.Logger) *CardGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &CardGateway{client: sc, log: log}
}

func (g *CardGateway) Name() string { return "card" }

// Currencies the processor treats as having no minor unit.
var zeroDecimalCurrencies = map[string]bool{"JPY": true}

// minorUnits converts a major-unit amount to the processor's integer
// convention (cents for most currencies, whole units for JPY).
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func majorUnits(minor int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.NewFromInt(minor).Shift(-2)
}

func (g *CardGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(amount, currency)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	// The local payment id rides along as metadata so the webhook can route
	// the confirmation back; the provider assigns its own external id.
	if len(metadata) > 0 {
		params.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			params.Metadata[k] = v
		}
		// One idempotency key per local payment: a retried network call
		// cannot create a second charge.
		if id, ok := metadata["payment_id"]; ok {
			params.IdempotencyKey = stripe.String(id)
		}
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, g.mapError(err)
	}
	return g.intentFrom(pi), nil
}

func (g *CardGateway) Confirm(ctx context.Context, externalID string) (*Intent, error) {
	// A status read, not a mutation: the processor finalizes card charges
	// itself, so confirming twice always reports the same terminal state.
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.PaymentIntents.Get(externalID, params)
	if err != nil {
		return nil, g.mapError(err)
	}
	return g.intentFrom(pi), nil
}

func (g *CardGateway) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, currency string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(externalID),
	}
	params.Context = ctx
	if amount != nil {
		params.Amount = stripe.Int64(minorUnits(*amount, currency))
	}

	r, err := g.client.Refunds.New(params)
	if err != nil {
		return nil, g.mapError(err)
	}

	status := StatusCompleted
	if r.Status != stripe.RefundStatusSucceeded {
		status = StatusProcessing
	}
	return &RefundResult{
		ExternalID: r.ID,
		Status:     status,
		Amount:     majorUnits(r.Amount, string(r.Currency)),
	}, nil
}

func (g *CardGateway) Status(ctx context.Context, externalID string) (Status, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.PaymentIntents.Get(externalID, params)
	if err != nil {
		return StatusPending, g.mapError(err)
	}
	return g.normalizeStatus(pi.Status), nil
}

func (g *CardGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	c, err := g.client.Customers.New(params)
	if err != nil {
		return "", g.mapError(err)
	}
	return c.ID, nil
}

func (g *CardGateway) CreateSubscription(ctx context.Context, customerID, planID string, metadata map[string]string) (*SubscriptionResult, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(planID)},
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	s, err := g.client.Subscriptions.New(params)
	if err != nil {
		return nil, g.mapError(err)
	}
	return &SubscriptionResult{
		ExternalID:       s.ID,
		Status:           string(s.Status),
		CurrentPeriodEnd: timeFromUnix(s.CurrentPeriodEnd),
	}, nil
}

func (g *CardGateway) CancelSubscription(ctx context.Context, externalID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := g.client.Subscriptions.Cancel(externalID, params); err != nil {
		return g.mapError(err)
	}
	return nil
}

func (g *CardGateway) intentFrom(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ExternalID:   pi.ID,
		Status:       g.normalizeStatus(pi.Status),
		ClientSecret: pi.ClientSecret,
	}
	if pi.LastResponse != nil {
		intent.Raw = pi.LastResponse.RawJSON
	}
	return intent
}

// cardStatusTable is the exhaustive provider-native → normalized mapping.
var cardStatusTable = map[stripe.PaymentIntentStatus]Status{
	stripe.PaymentIntentStatusRequiresPaymentMethod: StatusPending,
	stripe.PaymentIntentStatusRequiresConfirmation:  StatusPending,
	stripe.PaymentIntentStatusRequiresAction:        StatusProcessing,
	stripe.PaymentIntentStatusRequiresCapture:       StatusProcessing,
	stripe.PaymentIntentStatusProcessing:            StatusProcessing,
	stripe.PaymentIntentStatusSucceeded:             StatusCompleted,
	stripe.PaymentIntentStatusCanceled:              StatusCancelled,
}

func (g *CardGateway) normalizeStatus(s stripe.PaymentIntentStatus) Status {
	if mapped, ok := cardStatusTable[s]; ok {
		return mapped
	}
	g.log.Warn("unmapped card provider status, defaulting to PENDING",
		zap.String("provider", g.Name()),
		zap.String("native_status", string(s)))
	return StatusPending
}

// mapError converts SDK errors into domain errors so provider types never
// leak past the adapter boundary.
func (g *CardGateway) mapError(err error) error {
	var cardErr *stripe.Error
	if errors.As(err, &cardErr) {
		switch {
		case cardErr.Code == stripe.ErrorCodeAmountTooLarge:
			return fmt.Errorf("%w: %s", ErrRefundExceedsCaptured, cardErr.Msg)
		case cardErr.Code == stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%w: %s", ErrIntentNotFound, cardErr.Msg)
		case cardErr.HTTPStatusCode >= http.StatusInternalServerError,
			cardErr.Code == stripe.ErrorCodeRateLimit:
			return fmt.Errorf("%w: %s", ErrGatewayUnavailable, cardErr.Msg)
		}
		return fmt.Errorf("card gateway rejected the request: %s (%s)", cardErr.Msg, cardErr.Code)
	}
	// Anything that never reached the provider counts as unavailable.
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
