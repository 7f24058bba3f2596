package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// CardProcessor verifies and normalizes card provider events. Signature
// verification uses the provider SDK's timestamped HMAC scheme.
type CardProcessor struct {
	signingSecret string
	log           *zap.Logger
}

func NewCardProcessor(signingSecret string, log *zap.Logger) *CardProcessor {
	return &CardProcessor{signingSecret: signingSecret, log: log}
}

func (p *CardProcessor) Name() string { return "card" }

func (p *CardProcessor) VerifyAndParse(payload []byte, signature string) (*NormalizedEvent, error) {
	event, err := stripewebhook.ConstructEvent(payload, signature, p.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	ev := &NormalizedEvent{
		ID:       event.ID,
		Provider: p.Name(),
		Kind:     KindUnknown,
		Raw:      event.Data.Raw,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decoding payment intent from event %s: %w", event.ID, err)
		}
		ev.ExternalID = pi.ID
		ev.PaymentID = pi.Metadata["payment_id"]
		ev.Currency = string(pi.Currency)
		amt := decimal.NewFromInt(pi.Amount).Div(decimal.NewFromInt(100))
		ev.Amount = &amt
		if event.Type == "payment_intent.succeeded" {
			ev.Kind = KindCaptureSucceeded
		} else {
			ev.Kind = KindCaptureFailed
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decoding charge from event %s: %w", event.ID, err)
		}
		ev.Kind = KindRefund
		if ch.PaymentIntent != nil {
			ev.ExternalID = ch.PaymentIntent.ID
		}
		ev.PaymentID = ch.Metadata["payment_id"]
		amt := decimal.NewFromInt(ch.AmountRefunded).Div(decimal.NewFromInt(100))
		ev.Amount = &amt

	default:
		p.log.Info("unhandled card webhook event type",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
	}

	return ev, nil
}
