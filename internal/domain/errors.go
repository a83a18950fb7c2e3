package domain

import (
	"errors"
	"fmt"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrDepositNotFound     = errors.New("deposit not found")
	// ErrDepositExists is returned by the repository when the
	// one-deposit-per-reservation constraint rejects an insert.
	ErrDepositExists = errors.New("deposit already exists for reservation")
)

// ValidationError marks malformed or missing input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError marks a business-rule violation: the attempted
// transition is not legal from the deposit's current status.
type InvalidTransitionError struct {
	From      DepositStatus
	Attempted string
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s deposit in status %s: %s", e.Attempted, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s deposit in status %s", e.Attempted, e.From)
}

// ConfigurationError marks missing credentials or secrets. Fatal at
// startup, never produced per-request.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}
