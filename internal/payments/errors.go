package payments

import "errors"

var (
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrAmountMismatch   = errors.New("payment amount does not match order total")
	ErrProviderDisabled = errors.New("payment provider is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrOrderMismatch    = errors.New("provider order does not belong to this order")
)
