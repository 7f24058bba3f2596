package discount

import "errors"

var (
	ErrNotFound         = errors.New("discount code not found")
	ErrCodeExists       = errors.New("discount code already exists")
	ErrInactive         = errors.New("discount code is inactive")
	ErrNotYetActive     = errors.New("discount code is not yet active")
	ErrExpired          = errors.New("discount code has expired")
	ErrExhausted        = errors.New("discount code usage limit reached")
	ErrUserLimitReached = errors.New("discount code per-user limit reached")
	ErrInvalidInput     = errors.New("invalid discount input")
)
