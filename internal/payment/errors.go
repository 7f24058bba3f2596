package payment

import "errors"

var (
	// ErrNotFound matches standard 404 behavior.
	ErrNotFound = errors.New("payment not found")

	// ErrInvalidState protects the state machine: the requested operation
	// is not legal from the payment's current status.
	ErrInvalidState = errors.New("operation not allowed in current payment state")

	// ErrRefundExceedsAmount rejects refunds larger than the original
	// payment amount.
	ErrRefundExceedsAmount = errors.New("refund amount exceeds payment amount")

	// ErrInvalidInput covers malformed creation parameters; never retried.
	ErrInvalidInput = errors.New("invalid payment input")
)
