package service

import (
	"context"
	"time"

	"deposit-backend/internal/domain"
)

// AuthorizeResult carries the deposit snapshot plus what the frontend
// needs to finish an additional-action (3-D Secure) challenge.
type AuthorizeResult struct {
	Deposit        *domain.Deposit
	ClientSecret   string
	RequiresAction bool
}

type DepositService interface {
	Authorize(ctx context.Context, reservationID int64, paymentMethodID string, metadata map[string]string) (*AuthorizeResult, error)
	Capture(ctx context.Context, reservationID, amountCents int64, reason string) (*domain.Deposit, error)
	Release(ctx context.Context, reservationID int64, reason string) (*domain.Deposit, error)
	Status(ctx context.Context, reservationID int64) (*domain.Deposit, error)
	// ExpireStale releases every deposit still on hold whose reservation
	// checked out before now minus the auto-release policy window.
	// Per-item failures are logged and do not abort the sweep.
	ExpireStale(ctx context.Context, now time.Time) (released int, err error)
}

// IngestResult reports how an inbound webhook delivery was handled.
type IngestResult struct {
	EventID   int64
	Duplicate bool
	Deferred  bool
}

type WebhookReconciler interface {
	// Ingest verifies, deduplicates and persists one inbound delivery,
	// then processes it synchronously or defers it to the queue.
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (*IngestResult, error)
	// ProcessEvent applies one persisted event through the state machine.
	// Failures are recorded on the event row, never thrown to transport.
	ProcessEvent(ctx context.Context, eventID int64) error
}

// AlertService surfaces conditions that need manual inspection. It must
// never fail the operation that triggered the alert.
type AlertService interface {
	WebhookEventFailed(ctx context.Context, ev *domain.WebhookEvent)
}
