package service

import "errors"

// Error classes surfaced to the HTTP layer. Callers wrap them with context
// and the API maps them to status codes with errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrStateConflict           = errors.New("booking is not in the required state")
	ErrPaymentAlreadyCompleted = errors.New("payment already completed for this booking")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidChecksum         = errors.New("invalid checksum")
	ErrGatewayNotConfigured    = errors.New("payment gateway not configured")
)
