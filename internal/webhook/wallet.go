package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletProcessor verifies wallet provider events signed with an
// HMAC-SHA256 hex digest of the raw body.
type WalletProcessor struct {
	secret []byte
	log    *zap.Logger
}

func NewWalletProcessor(secret string, log *zap.Logger) *WalletProcessor {
	return &WalletProcessor{secret: []byte(secret), log: log}
}

func (p *WalletProcessor) Name() string { return "wallet" }

type walletEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
		Amount   struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"resource"`
}

func (p *WalletProcessor) VerifyAndParse(payload []byte, signature string) (*NormalizedEvent, error) {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrSignatureInvalid
	}

	var we walletEvent
	if err := json.Unmarshal(payload, &we); err != nil {
		return nil, fmt.Errorf("decoding wallet event: %w", err)
	}

	ev := &NormalizedEvent{
		ID:         we.ID,
		Provider:   p.Name(),
		Kind:       KindUnknown,
		ExternalID: we.Resource.ID,
		PaymentID:  we.Resource.CustomID,
		Currency:   we.Resource.Amount.CurrencyCode,
		Raw:        json.RawMessage(payload),
	}
	if we.Resource.Amount.Value != "" {
		if amt, err := decimal.NewFromString(we.Resource.Amount.Value); err == nil {
			ev.Amount = &amt
		}
	}

	switch we.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Kind = KindCaptureSucceeded
	case "CHECKOUT.ORDER.APPROVED":
		// Approval means the payer authorized the order; money moves only
		// on the capture event, so this must not settle the payment.
		p.log.Info("wallet order approved, awaiting capture",
			zap.String("event_id", we.ID),
			zap.String("external_id", we.Resource.ID))
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		ev.Kind = KindCaptureFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		ev.Kind = KindRefund
	default:
		p.log.Info("unhandled wallet webhook event type",
			zap.String("event_id", we.ID),
			zap.String("type", we.EventType))
	}

	return ev, nil
}
