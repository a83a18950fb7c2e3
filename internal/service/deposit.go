package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/logger"
	"deposit-backend/internal/processor"
	"deposit-backend/internal/repository"
)

// maxWriteRetries bounds the optimistic re-read/re-decide loop when a
// conditional write loses to a concurrent transition.
const maxWriteRetries = 3

type depositService struct {
	depositRepo     repository.DepositRepository
	reservationRepo repository.ReservationRepository
	gateway         processor.Gateway
	testMode        bool
	releaseAfter    time.Duration
}

func NewDepositService(
	depositRepo repository.DepositRepository,
	reservationRepo repository.ReservationRepository,
	gateway processor.Gateway,
	testMode bool,
	releaseAfter time.Duration,
) DepositService {
	return &depositService{
		depositRepo:     depositRepo,
		reservationRepo: reservationRepo,
		gateway:         gateway,
		testMode:        testMode,
		releaseAfter:    releaseAfter,
	}
}

func (s *depositService) Authorize(ctx context.Context, reservationID int64, paymentMethodID string, metadata map[string]string) (*AuthorizeResult, error) {
	if paymentMethodID == "" {
		return nil, domain.NewValidationError("payment_method_id", "payment method is required")
	}

	res, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	dep, err := s.depositRepo.GetByReservation(ctx, reservationID)
	if err != nil && !errors.Is(err, domain.ErrDepositNotFound) {
		return nil, err
	}

	// Legality check before touching the processor.
	if _, err := domain.Decide(dep, domain.Transition{
		Kind:            domain.TransitionAuthorize,
		HoldAmountCents: res.HoldAmountCents,
	}); err != nil {
		return nil, err
	}

	if dep == nil {
		dep = &domain.Deposit{
			ReservationID: reservationID,
			Status:        domain.DepositStatusPending,
			TestMode:      s.testMode,
		}
		if err := s.depositRepo.Create(ctx, dep); err != nil {
			if errors.Is(err, domain.ErrDepositExists) {
				// Lost a create race; the winner owns the authorization.
				return nil, &domain.InvalidTransitionError{
					From:      domain.DepositStatusPending,
					Attempted: string(domain.TransitionAuthorize),
					Reason:    "concurrent authorization in progress",
				}
			}
			return nil, err
		}
	}

	// A pending row may still point at the intent of an earlier attempt,
	// typically one stalled awaiting customer action. Adopt that intent if
	// the customer completed the challenge out of band; otherwise cancel
	// it so the fresh intent can take over the row without leaving a
	// second hold on the card.
	var snap *processor.Snapshot
	replaceReference := false
	if dep.ProcessorReference != "" {
		prior, rerr := s.gateway.Retrieve(ctx, dep.ProcessorReference)
		switch {
		case processor.IsTransient(rerr):
			return nil, rerr
		case rerr != nil:
			// The processor no longer recognizes the reference; a fresh
			// intent simply takes its place.
			replaceReference = true
		case prior.Status == processor.StatusRequiresCapture:
			snap = prior
		default:
			if _, err := s.gateway.Release(ctx, dep.ProcessorReference); err != nil {
				return nil, err
			}
			replaceReference = true
		}
	}

	if snap == nil {
		subjectRef := fmt.Sprintf("RSV%d", res.ID)
		snap, err = s.gateway.Authorize(ctx, processor.AuthorizeInput{
			AmountCents:      res.HoldAmountCents,
			PaymentMethodID:  paymentMethodID,
			SubjectReference: subjectRef,
			Description:      fmt.Sprintf("Deposit for reservation %s", subjectRef),
			Metadata:         metadata,
		})
		if err != nil {
			if processor.IsClient(err) {
				if _, werr := s.depositRepo.UpdateIfStatus(ctx, dep.ID, domain.DepositStatusPending, dep.CapturedAmountCents, repository.DepositMutation{
					Status:    domain.DepositStatusFailed,
					LastError: err.Error(),
				}); werr != nil {
					logger.Error("failed to record authorization failure", "deposit_id", dep.ID, "error", werr)
				}
			}
			// Transient failures leave the row pending: the processor may
			// have authorized anyway, and reconciliation settles it.
			return nil, err
		}
	}

	outcome, err := domain.Decide(nil, domain.Transition{
		Kind:            domain.TransitionAuthorize,
		HoldAmountCents: res.HoldAmountCents,
		RequiresAction:  snap.Status != processor.StatusRequiresCapture,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	mut := repository.DepositMutation{
		Status:                    outcome.Status,
		ProcessorReference:        snap.Reference,
		ReplaceProcessorReference: replaceReference,
		AuthorizedAmountCents:     outcome.AuthorizedAmountCents,
		CapturedAmountCents:       dep.CapturedAmountCents,
	}
	if outcome.StampAuthorized {
		mut.AuthorizedAt = &now
	}
	ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, domain.DepositStatusPending, dep.CapturedAmountCents, mut)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A webhook landed first; its view of the processor wins.
		logger.Debug("authorization write superseded by concurrent transition", "deposit_id", dep.ID)
	}

	fresh, err := s.depositRepo.GetByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{
		Deposit:        fresh,
		ClientSecret:   snap.ClientSecret,
		RequiresAction: snap.RequiresAction,
	}, nil
}

func (s *depositService) Capture(ctx context.Context, reservationID, amountCents int64, reason string) (*domain.Deposit, error) {
	dep, err := s.depositRepo.GetByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	outcome, err := domain.Decide(dep, domain.Transition{
		Kind:        domain.TransitionCapture,
		AmountCents: amountCents,
	})
	if err != nil {
		return nil, err
	}

	// Processor call outside any database lock; the conditional write
	// below carries the pre-call observation as its guard.
	if _, err := s.gateway.Capture(ctx, dep.ProcessorReference, &amountCents); err != nil {
		return nil, err
	}

	now := time.Now()
	mut := repository.DepositMutation{
		Status:                outcome.Status,
		AuthorizedAmountCents: outcome.AuthorizedAmountCents,
		CapturedAmountCents:   outcome.CapturedAmountCents,
		CaptureReason:         reason,
	}
	if outcome.StampCaptured {
		mut.CapturedAt = &now
	}

	ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, dep.Status, dep.CapturedAmountCents, mut)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The processor accepted our capture but the row moved under us
		// (another capture or a webhook). Fold our amount into the fresh
		// row; the funds are captured regardless of who writes first.
		if err := s.recordCapturedAmount(ctx, dep.ID, amountCents, reason); err != nil {
			return nil, err
		}
	}
	return s.depositRepo.GetByReservation(ctx, reservationID)
}

// recordCapturedAmount retries the capture bookkeeping against fresh
// reads after a lost conditional write. A row a webhook already settled
// as captured needs nothing further.
func (s *depositService) recordCapturedAmount(ctx context.Context, depositID, amountCents int64, reason string) error {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		dep, err := s.depositRepo.GetByID(ctx, depositID)
		if err != nil {
			return err
		}
		if dep.Status == domain.DepositStatusCaptured {
			return nil
		}
		if dep.Status != domain.DepositStatusAuthorized {
			return &domain.InvalidTransitionError{From: dep.Status, Attempted: string(domain.TransitionCapture)}
		}

		newCaptured := dep.CapturedAmountCents + amountCents
		status := domain.DepositStatusAuthorized
		now := time.Now()
		mut := repository.DepositMutation{
			Status:                status,
			AuthorizedAmountCents: dep.AuthorizedAmountCents,
			CapturedAmountCents:   newCaptured,
			CaptureReason:         reason,
		}
		if newCaptured >= dep.AuthorizedAmountCents {
			mut.Status = domain.DepositStatusCaptured
			mut.CapturedAt = &now
		}
		ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, dep.Status, dep.CapturedAmountCents, mut)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("capture bookkeeping lost %d consecutive write races for deposit %d", maxWriteRetries, depositID)
}

func (s *depositService) Release(ctx context.Context, reservationID int64, reason string) (*domain.Deposit, error) {
	dep, err := s.depositRepo.GetByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	outcome, err := domain.Decide(dep, domain.Transition{Kind: domain.TransitionRelease})
	if err != nil {
		return nil, err
	}

	// A pending deposit that never reached the processor has nothing to
	// release remotely.
	if dep.ProcessorReference != "" {
		if _, err := s.gateway.Release(ctx, dep.ProcessorReference); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	mut := repository.DepositMutation{
		Status:                outcome.Status,
		AuthorizedAmountCents: outcome.AuthorizedAmountCents,
		ReleaseReason:         reason,
		ReleasedAt:            &now,
	}
	ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, dep.Status, dep.CapturedAmountCents, mut)
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := s.depositRepo.GetByReservation(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		// Duplicate concurrent releases converge on the same terminal
		// state; anything else is a genuine conflict.
		if fresh.Status != domain.DepositStatusReleased && fresh.Status != domain.DepositStatusExpired {
			return nil, &domain.InvalidTransitionError{From: fresh.Status, Attempted: string(domain.TransitionRelease)}
		}
		return fresh, nil
	}
	return s.depositRepo.GetByReservation(ctx, reservationID)
}

func (s *depositService) Status(ctx context.Context, reservationID int64) (*domain.Deposit, error) {
	return s.depositRepo.GetByReservation(ctx, reservationID)
}

func (s *depositService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.releaseAfter)
	stale, err := s.depositRepo.ListAuthorizedWithCheckoutBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range stale {
		dep := &stale[i]
		if err := s.expireOne(ctx, dep, now); err != nil {
			// Partial-failure isolation: one bad deposit must not block
			// releasing the rest.
			logger.Error("auto-release failed", "deposit_id", dep.ID, "reservation_id", dep.ReservationID, "error", err)
			continue
		}
		released++
	}
	return released, nil
}

func (s *depositService) expireOne(ctx context.Context, dep *domain.Deposit, now time.Time) error {
	outcome, err := domain.Decide(dep, domain.Transition{Kind: domain.TransitionExpire})
	if err != nil {
		return err
	}
	if dep.ProcessorReference != "" {
		if _, err := s.gateway.Release(ctx, dep.ProcessorReference); err != nil {
			return err
		}
	}
	releasedAt := now
	ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, dep.Status, dep.CapturedAmountCents, repository.DepositMutation{
		Status:                outcome.Status,
		AuthorizedAmountCents: outcome.AuthorizedAmountCents,
		ReleaseReason:         "auto_release",
		ReleasedAt:            &releasedAt,
	})
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("auto-release skipped, deposit transitioned concurrently", "deposit_id", dep.ID)
	}
	return nil
}
