// Package webhook ingests signed provider events and maps them onto the
// payment ledger's idempotent transitions. Providers deliver at least
// once and out of order; every handler here must be a safe no-op on
// replay.
package webhook

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSignatureInvalid rejects a payload that fails authenticity checks.
// Nothing downstream of this error may touch state.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Kind is the provider-independent event classification.
type Kind string

const (
	KindCaptureSucceeded Kind = "capture_succeeded"
	KindCaptureFailed    Kind = "capture_failed"
	KindRefund           Kind = "refund"
	KindUnknown          Kind = "unknown"
)

// NormalizedEvent is one provider event after verification and mapping.
// PaymentID comes from the metadata the ledger attached at Process time;
// the external id alone cannot route the event because it is assigned by
// the provider after our payment already exists.
type NormalizedEvent struct {
	ID         string
	Provider   string
	Kind       Kind
	ExternalID string
	PaymentID  string
	Amount     *decimal.Decimal
	Currency   string
	Raw        json.RawMessage
}

// Processor verifies one provider's signature scheme and normalizes its
// payloads. VerifyAndParse fails closed: a bad signature returns
// ErrSignatureInvalid and no event.
type Processor interface {
	Name() string
	VerifyAndParse(payload []byte, signature string) (*NormalizedEvent, error)
}
