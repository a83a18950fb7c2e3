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
	"deposit-backend/internal/tasks"
)

// Event types whose effect must be visible before the processor's
// webhook-delivery retry window: processed on the request path.
var synchronousEventTypes = map[string]bool{
	processor.EventTypeSucceeded:     true,
	processor.EventTypePaymentFailed: true,
}

var handledEventTypes = map[string]domain.EventKind{
	processor.EventTypeAmountCapturableUpdated: domain.EventAmountCapturable,
	processor.EventTypeSucceeded:               domain.EventSucceeded,
	processor.EventTypeCanceled:                domain.EventCanceled,
	processor.EventTypePaymentFailed:           domain.EventPaymentFailed,
	processor.EventTypePartiallyFunded:         domain.EventPartiallyFunded,
	processor.EventTypeChargeRefunded:          domain.EventChargeRefunded,
}

type webhookReconciler struct {
	eventRepo   repository.WebhookEventRepository
	depositRepo repository.DepositRepository
	verifier    *processor.WebhookVerifier
	dispatcher  *tasks.Dispatcher
	alerts      AlertService
	maxAttempts int32
	backoffUnit time.Duration
}

func NewWebhookReconciler(
	eventRepo repository.WebhookEventRepository,
	depositRepo repository.DepositRepository,
	verifier *processor.WebhookVerifier,
	dispatcher *tasks.Dispatcher,
	alerts AlertService,
	maxAttempts int,
	backoffUnit time.Duration,
) WebhookReconciler {
	return &webhookReconciler{
		eventRepo:   eventRepo,
		depositRepo: depositRepo,
		verifier:    verifier,
		dispatcher:  dispatcher,
		alerts:      alerts,
		maxAttempts: int32(maxAttempts),
		backoffUnit: backoffUnit,
	}
}

func (s *webhookReconciler) Ingest(ctx context.Context, payload []byte, signatureHeader string) (*IngestResult, error) {
	ev, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		logger.Warn("webhook rejected", "error", err)
		return nil, err
	}

	logger.Info("webhook received", "event_id", ev.ID, "type", ev.Type, "livemode", ev.Livemode)

	row := &domain.WebhookEvent{
		ExternalEventID:  ev.ID,
		Type:             ev.Type,
		Payload:          ev.Payload,
		RelatedReference: ev.RelatedReference,
		Livemode:         ev.Livemode,
	}
	inserted, err := s.eventRepo.InsertIfAbsent(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}
	if !inserted {
		// The processor redelivers freely; a seen event id is
		// acknowledged without reprocessing.
		logger.Info("duplicate webhook ignored", "event_id", ev.ID)
		return &IngestResult{Duplicate: true}, nil
	}

	result := &IngestResult{EventID: row.ID}
	if synchronousEventTypes[ev.Type] {
		// Processing failures are recorded on the row; the transport
		// still acknowledges receipt.
		if err := s.ProcessEvent(ctx, row.ID); err != nil {
			logger.Error("synchronous webhook processing failed", "event_id", ev.ID, "error", err)
		}
	} else {
		result.Deferred = true
		s.dispatcher.Enqueue(row.ID)
	}
	return result, nil
}

func (s *webhookReconciler) ProcessEvent(ctx context.Context, eventID int64) error {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load webhook event %d: %w", eventID, err)
	}
	switch ev.Status {
	case domain.WebhookEventStatusProcessed, domain.WebhookEventStatusFailed:
		return nil
	}

	if err := s.eventRepo.MarkProcessing(ctx, ev.ID); err != nil {
		return err
	}

	if applyErr := s.apply(ctx, ev); applyErr != nil {
		return s.recordFailure(ctx, ev, applyErr)
	}

	if err := s.eventRepo.MarkProcessed(ctx, ev.ID); err != nil {
		return err
	}
	logger.Info("webhook processed", "event_id", ev.ExternalEventID, "type", ev.Type)
	return nil
}

// recordFailure applies the retry policy: transient failures back off
// and retry in place on the same row, bounded by maxAttempts; client
// failures and exhausted retries are terminal and surfaced for manual
// inspection.
func (s *webhookReconciler) recordFailure(ctx context.Context, ev *domain.WebhookEvent, applyErr error) error {
	attempts := ev.Attempts + 1
	retryable := !processor.IsClient(applyErr)

	if retryable && attempts < s.maxAttempts {
		delay := time.Duration(attempts) * s.backoffUnit
		if err := s.eventRepo.MarkRetrying(ctx, ev.ID, attempts, applyErr.Error(), time.Now().Add(delay)); err != nil {
			return err
		}
		logger.Warn("webhook processing failed, scheduling retry",
			"event_id", ev.ExternalEventID, "attempt", attempts, "max_attempts", s.maxAttempts, "delay", delay, "error", applyErr)
		s.dispatcher.EnqueueAfter(ev.ID, delay)
		return applyErr
	}

	if err := s.eventRepo.MarkFailed(ctx, ev.ID, attempts, applyErr.Error()); err != nil {
		return err
	}
	logger.Error("webhook processing failed permanently",
		"event_id", ev.ExternalEventID, "attempts", attempts, "error", applyErr)
	ev.Attempts = attempts
	ev.LastError = applyErr.Error()
	ev.Status = domain.WebhookEventStatusFailed
	s.alerts.WebhookEventFailed(ctx, ev)
	return applyErr
}

func (s *webhookReconciler) apply(ctx context.Context, ev *domain.WebhookEvent) error {
	kind, handled := handledEventTypes[ev.Type]
	if !handled {
		logger.Debug("unhandled webhook event type", "type", ev.Type, "event_id", ev.ExternalEventID)
		return nil
	}

	// Bookkeeping-only kinds never touch the deposit row.
	if kind == domain.EventChargeRefunded {
		logger.Info("charge refunded", "event_id", ev.ExternalEventID, "reference", ev.RelatedReference)
		return nil
	}

	dep, err := s.depositRepo.GetByProcessorReference(ctx, ev.RelatedReference)
	if err != nil {
		if errors.Is(err, domain.ErrDepositNotFound) {
			// The event may belong to an unrelated processor object;
			// acknowledged, not an error.
			logger.Warn("no deposit for webhook event", "reference", ev.RelatedReference, "type", ev.Type)
			return nil
		}
		return err
	}

	snap, err := processor.ParseIntentSnapshot(ev.Payload)
	if err != nil {
		return err
	}

	if kind == domain.EventPartiallyFunded {
		logger.Info("payment partially funded", "deposit_id", dep.ID, "amount_received_cents", snap.AmountReceivedCents)
		return nil
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		outcome, err := domain.Decide(dep, domain.Transition{
			Kind:             domain.TransitionEvent,
			Event:            kind,
			EventAmountCents: eventAmount(kind, snap),
		})
		if err != nil {
			return err
		}
		if outcome.NoChange {
			logger.Debug("webhook event produced no transition", "deposit_id", dep.ID, "type", ev.Type, "status", dep.Status)
			return nil
		}

		ok, err := s.depositRepo.UpdateIfStatus(ctx, dep.ID, dep.Status, dep.CapturedAmountCents, s.mutationFor(dep, outcome, kind, snap))
		if err != nil {
			return err
		}
		if ok {
			logger.Info("webhook applied",
				"deposit_id", dep.ID, "type", ev.Type, "from_status", dep.Status, "to_status", outcome.Status)
			return nil
		}

		// Lost the write race; re-read and re-decide.
		dep, err = s.depositRepo.GetByID(ctx, dep.ID)
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("webhook apply lost %d consecutive write races for deposit %d", maxWriteRetries, dep.ID)
}

func (s *webhookReconciler) mutationFor(dep *domain.Deposit, outcome domain.Outcome, kind domain.EventKind, snap *processor.Snapshot) repository.DepositMutation {
	now := time.Now()
	mut := repository.DepositMutation{
		Status:                outcome.Status,
		ProcessorReference:    dep.ProcessorReference,
		AuthorizedAmountCents: outcome.AuthorizedAmountCents,
		CapturedAmountCents:   outcome.CapturedAmountCents,
	}
	if outcome.StampAuthorized {
		mut.AuthorizedAt = &now
	}
	if outcome.StampCaptured {
		mut.CapturedAt = &now
	}
	if outcome.StampReleased {
		mut.ReleasedAt = &now
	}
	switch kind {
	case domain.EventCanceled:
		mut.ReleaseReason = snap.CancellationReason
		mut.LastError = snap.LastErrorMessage
	case domain.EventPaymentFailed:
		mut.LastError = snap.LastErrorMessage
		if mut.LastError == "" {
			mut.LastError = "unknown payment error"
		}
	}
	return mut
}

func eventAmount(kind domain.EventKind, snap *processor.Snapshot) int64 {
	switch kind {
	case domain.EventAmountCapturable:
		if snap.AmountCapturableCents > 0 {
			return snap.AmountCapturableCents
		}
		return snap.AmountCents
	case domain.EventSucceeded:
		return snap.AmountReceivedCents
	}
	return 0
}
