package entity

import "errors"

var (
	// Event errors
	ErrEventNotFound = errors.New("event not found")
	ErrEventInactive = errors.New("event is not active")
	ErrEventDatePast = errors.New("event date cannot be in the past")

	// Booking errors
	ErrBookingNotFound    = errors.New("booking not found")
	ErrCapacityExceeded   = errors.New("requested quantity exceeds remaining capacity")
	ErrContention         = errors.New("concurrent update retries exhausted")
	ErrInvariantViolation = errors.New("booking counter invariant violated")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden operation")
	ErrUnavailable  = errors.New("storage unavailable")
)
