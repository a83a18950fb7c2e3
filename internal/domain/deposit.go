package domain

import "time"

type DepositStatus string

const (
	DepositStatusPending    DepositStatus = "PENDING"
	DepositStatusAuthorized DepositStatus = "AUTHORIZED"
	DepositStatusCaptured   DepositStatus = "CAPTURED"
	DepositStatusReleased   DepositStatus = "RELEASED"
	DepositStatusFailed     DepositStatus = "FAILED"
	DepositStatusExpired    DepositStatus = "EXPIRED"
)

// IsTerminal reports whether no further state-changing transition is
// allowed from this status. Only last_error may still be updated.
func (s DepositStatus) IsTerminal() bool {
	switch s {
	case DepositStatusCaptured, DepositStatusReleased, DepositStatusFailed, DepositStatusExpired:
		return true
	}
	return false
}

type Deposit struct {
	ID                    int64         `json:"id"`
	ReservationID         int64         `json:"reservation_id"`
	ProcessorReference    string        `json:"processor_reference,omitempty"`
	Status                DepositStatus `json:"status"`
	AuthorizedAmountCents int64         `json:"authorized_amount_cents"`
	CapturedAmountCents   int64         `json:"captured_amount_cents"`
	LastError             string        `json:"last_error,omitempty"`
	ReleaseReason         string        `json:"release_reason,omitempty"`
	CaptureReason         string        `json:"capture_reason,omitempty"`
	TestMode              bool          `json:"test_mode"`
	AuthorizedAt          *time.Time    `json:"authorized_at,omitempty"`
	CapturedAt            *time.Time    `json:"captured_at,omitempty"`
	ReleasedAt            *time.Time    `json:"released_at,omitempty"`
	CreatedOn             time.Time     `json:"created_on"`
	UpdatedOn             time.Time     `json:"updated_on"`
}

// RemainingCapturableCents is the portion of the authorization not yet
// converted into a charge.
func (d *Deposit) RemainingCapturableCents() int64 {
	return d.AuthorizedAmountCents - d.CapturedAmountCents
}
