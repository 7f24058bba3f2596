package subscription

import "errors"

var (
	// ErrNotFound matches standard 404 behavior.
	ErrNotFound = errors.New("subscription not found")

	// ErrDuplicateSubscription enforces the one-active-per-student rule.
	ErrDuplicateSubscription = errors.New("student already has an active subscription")

	// ErrUnknownPlan rejects subscription types missing from the catalog.
	ErrUnknownPlan = errors.New("unknown subscription type")
)
