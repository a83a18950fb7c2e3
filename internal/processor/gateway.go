package processor

import (
	"context"
	"errors"
	"fmt"
)

// Processor-native payment states the service reasons about.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusRequiresCapture       = "requires_capture"
	StatusCanceled              = "canceled"
	StatusSucceeded             = "succeeded"
)

// Snapshot is the processor-side view of a payment at one point in time.
type Snapshot struct {
	Reference             string
	Status                string
	AmountCents           int64
	AmountCapturableCents int64
	AmountReceivedCents   int64
	ClientSecret          string
	RequiresAction        bool
	CancellationReason    string
	LastErrorMessage      string
}

type AuthorizeInput struct {
	AmountCents     int64
	PaymentMethodID string
	// SubjectReference identifies the logical subject of the hold (the
	// reservation), used for idempotency-key derivation and metadata.
	SubjectReference string
	Description      string
	Metadata         map[string]string
}

// Gateway is the stateless adapter over the external payment processor.
// Implementations classify every failure as client or transient (see
// Error) and never retry on their own beyond the SDK's wire-level
// idempotent retries.
type Gateway interface {
	// Authorize places a hold for the amount without transferring funds.
	Authorize(ctx context.Context, in AuthorizeInput) (*Snapshot, error)
	// Capture converts part or all of the hold into a charge. A nil
	// amount captures the full capturable balance.
	Capture(ctx context.Context, reference string, amountCents *int64) (*Snapshot, error)
	// Release cancels the hold. Already-terminal payments are a no-op
	// success, by design and not just by idempotency key.
	Release(ctx context.Context, reference string) (*Snapshot, error)
	// Retrieve fetches the current processor-side snapshot.
	Retrieve(ctx context.Context, reference string) (*Snapshot, error)
}

type ErrorClass string

const (
	// ErrorClassClient marks declined cards and bad requests. Surfaced to
	// the caller, never retried.
	ErrorClassClient ErrorClass = "client"
	// ErrorClassTransient marks network and processor-side failures. Safe
	// to retry with backoff; a timeout here does not mean the underlying
	// operation failed.
	ErrorClassTransient ErrorClass = "transient"
)

// Stable machine-readable gateway error codes.
const (
	CodeCardDeclined         = "card_declined"
	CodeProcessorRejected    = "processor_rejected"
	CodeInvalidState         = "invalid_state"
	CodeAmountExceeded       = "amount_exceeded"
	CodeProcessorUnavailable = "processor_unavailable"
)

type Error struct {
	Class   ErrorClass
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processor %s error (%s): %s: %v", e.Class, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("processor %s error (%s): %s", e.Class, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newClientError(code, message string, err error) *Error {
	return &Error{Class: ErrorClassClient, Code: code, Message: message, Err: err}
}

func newTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Code: CodeProcessorUnavailable, Message: message, Err: err}
}

// IsTransient reports whether err is a gateway failure that may be
// retried with backoff.
func IsTransient(err error) bool {
	var gErr *Error
	return errors.As(err, &gErr) && gErr.Class == ErrorClassTransient
}

// IsClient reports whether err is a gateway rejection that must be
// surfaced to the caller instead of retried.
func IsClient(err error) bool {
	var gErr *Error
	return errors.As(err, &gErr) && gErr.Class == ErrorClassClient
}
