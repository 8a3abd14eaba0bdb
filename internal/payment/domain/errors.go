package domain

import "errors"

var (
	ErrPaymentNotFound    = errors.New("payment_not_found")
	ErrNotRefundable      = errors.New("payment_not_refundable")
	ErrAlreadyCompleted   = errors.New("payment_already_completed")
	ErrMissingReference   = errors.New("missing_gateway_reference")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrVerificationFailed = errors.New("gateway_verification_failed")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)
