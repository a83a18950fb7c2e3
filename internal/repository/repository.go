package repository

import (
	"context"
	"time"

	"deposit-backend/internal/domain"
)

type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	List(ctx context.Context) ([]domain.Reservation, error)
}

// DepositMutation is the full set of columns a conditional update writes.
// Timestamps are set-once: a non-nil value is only written when the column
// is still NULL. An empty ProcessorReference leaves the column untouched;
// a non-empty one is only written when the column is still NULL, unless
// ReplaceProcessorReference is set, which overwrites the stored reference
// (used when a stalled authorization attempt is superseded by a new one).
type DepositMutation struct {
	Status                    domain.DepositStatus
	ProcessorReference        string
	ReplaceProcessorReference bool
	AuthorizedAmountCents     int64
	CapturedAmountCents       int64
	LastError                 string
	ReleaseReason             string
	CaptureReason             string
	AuthorizedAt              *time.Time
	CapturedAt                *time.Time
	ReleasedAt                *time.Time
}

type DepositRepository interface {
	Create(ctx context.Context, dep *domain.Deposit) error
	GetByID(ctx context.Context, id int64) (*domain.Deposit, error)
	GetByReservation(ctx context.Context, reservationID int64) (*domain.Deposit, error)
	GetByProcessorReference(ctx context.Context, reference string) (*domain.Deposit, error)

	// UpdateIfStatus is the only mutation path for deposits. It applies
	// mut in a single conditional UPDATE guarded by the status and
	// captured amount observed before the transition was decided, and
	// reports false (no error) when the guard no longer matches.
	UpdateIfStatus(ctx context.Context, id int64, expectedStatus domain.DepositStatus, expectedCapturedCents int64, mut DepositMutation) (bool, error)

	// ListAuthorizedWithCheckoutBefore returns deposits still on hold
	// whose reservation checked out before the cutoff (sweeper input).
	ListAuthorizedWithCheckoutBefore(ctx context.Context, cutoff time.Time) ([]domain.Deposit, error)
}

type WebhookEventRepository interface {
	// InsertIfAbsent persists the event unless its external event id was
	// seen before; inserted=false signals a duplicate delivery.
	InsertIfAbsent(ctx context.Context, ev *domain.WebhookEvent) (inserted bool, err error)
	GetByID(ctx context.Context, id int64) (*domain.WebhookEvent, error)
	GetByExternalID(ctx context.Context, externalEventID string) (*domain.WebhookEvent, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkProcessed(ctx context.Context, id int64) error
	MarkRetrying(ctx context.Context, id int64, attempts int32, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int32, lastError string) error
	// ListDueForRetry finds events stuck in RECEIVED or RETRYING whose
	// backoff delay has elapsed (also recovers work lost on restart).
	ListDueForRetry(ctx context.Context, now time.Time, limit int32) ([]domain.WebhookEvent, error)
}
