package gateway

import "errors"

var (
	// ErrGatewayUnavailable marks transient provider failures (network,
	// auth, 5xx). Retry by creating a new Process attempt, never by
	// blindly re-confirming.
	ErrGatewayUnavailable = errors.New("payment provider is currently unavailable")

	// ErrUnsupportedGateway is returned by the factory for a payment
	// method no adapter is registered for.
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")

	// ErrRefundExceedsCaptured means the requested refund amount is larger
	// than what the provider actually captured.
	ErrRefundExceedsCaptured = errors.New("refund amount exceeds captured total")

	// ErrIntentNotFound means the provider has no record of the external id.
	ErrIntentNotFound = errors.New("payment intent not found at provider")
)
