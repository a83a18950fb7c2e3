package processor

import (
	"context"
	"errors"
	"time"

	"deposit-backend/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway against the Stripe PaymentIntent API
// with manual capture. The client is constructed explicitly and injected;
// there is no package-global key.
type StripeGateway struct {
	client   *client.API
	currency string
	timeout  time.Duration
}

func NewStripeGateway(secretKey, currency string, timeout time.Duration) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{
		client:   sc,
		currency: currency,
		timeout:  timeout,
	}
}

func (g *StripeGateway) Authorize(ctx context.Context, in AuthorizeInput) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.AmountCents),
		Currency:           stripe.String(g.currency),
		PaymentMethod:      stripe.String(in.PaymentMethodID),
		Confirm:            stripe.Bool(true),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String(in.Description),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(idempotencyKey("auth", in.SubjectReference, in.AmountCents, g.currency))

	logger.ExternalServiceCall("stripe", "authorize", "amount_cents", in.AmountCents)
	intent, err := g.client.PaymentIntents.New(params)
	logger.ExternalServiceResult("stripe", "authorize", err)
	if err != nil {
		return nil, g.classify("authorize", err)
	}
	return snapshotFromIntent(intent), nil
}

func (g *StripeGateway) Capture(ctx context.Context, reference string, amountCents *int64) (*Snapshot, error) {
	// Reconcile against the processor before acting: local knowledge may
	// be stale relative to webhook-delivered state.
	current, err := g.Retrieve(ctx, reference)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusRequiresCapture {
		return nil, newClientError(CodeInvalidState, "payment is not capturable in status "+current.Status, nil)
	}

	toCapture := current.AmountCapturableCents
	if amountCents != nil {
		toCapture = *amountCents
	}
	if toCapture <= 0 {
		return nil, newClientError(CodeAmountExceeded, "capture amount must be positive", nil)
	}
	if toCapture > current.AmountCapturableCents {
		return nil, newClientError(CodeAmountExceeded, "capture amount exceeds capturable amount", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(toCapture),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey("capture", reference, toCapture, g.currency))

	logger.ExternalServiceCall("stripe", "capture", "reference", reference, "amount_cents", toCapture)
	intent, err := g.client.PaymentIntents.Capture(reference, params)
	logger.ExternalServiceResult("stripe", "capture", err)
	if err != nil {
		return nil, g.classify("capture", err)
	}
	return snapshotFromIntent(intent), nil
}

func (g *StripeGateway) Release(ctx context.Context, reference string) (*Snapshot, error) {
	current, err := g.Retrieve(ctx, reference)
	if err != nil {
		return nil, err
	}

	// Idempotent by design: a hold that is already canceled or fully
	// settled needs no release.
	if current.Status == StatusCanceled || current.Status == StatusSucceeded {
		logger.Debug("release noop, payment already terminal", "reference", reference, "status", current.Status)
		return current, nil
	}

	switch current.Status {
	case StatusRequiresCapture, StatusRequiresAction, StatusRequiresPaymentMethod:
	default:
		return nil, newClientError(CodeInvalidState, "payment is not releasable in status "+current.Status, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey("release", reference, current.AmountCapturableCents, g.currency))

	logger.ExternalServiceCall("stripe", "release", "reference", reference)
	intent, err := g.client.PaymentIntents.Cancel(reference, params)
	logger.ExternalServiceResult("stripe", "release", err)
	if err != nil {
		return nil, g.classify("release", err)
	}
	return snapshotFromIntent(intent), nil
}

func (g *StripeGateway) Retrieve(ctx context.Context, reference string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.client.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, g.classify("retrieve", err)
	}
	return snapshotFromIntent(intent), nil
}

// classify folds every Stripe failure into the two-class taxonomy the
// reconciler's retry policy needs. Timeouts are transient: the processor
// may well have performed the operation, and reconciliation, not the
// absence of a response, is the source of truth.
func (g *StripeGateway) classify(operation string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		logger.Warn("stripe error", "operation", operation, "type", sErr.Type, "code", sErr.Code, "status", sErr.HTTPStatusCode)
		switch sErr.Type {
		case stripe.ErrorTypeCard:
			return newClientError(CodeCardDeclined, sErr.Msg, err)
		case stripe.ErrorTypeInvalidRequest:
			return newClientError(CodeProcessorRejected, sErr.Msg, err)
		}
		return newTransientError(sErr.Msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newTransientError("processor call timed out", err)
	}
	return newTransientError("processor unreachable", err)
}

func snapshotFromIntent(intent *stripe.PaymentIntent) *Snapshot {
	snap := &Snapshot{
		Reference:             intent.ID,
		Status:                string(intent.Status),
		AmountCents:           intent.Amount,
		AmountCapturableCents: intent.AmountCapturable,
		AmountReceivedCents:   intent.AmountReceived,
		ClientSecret:          intent.ClientSecret,
		RequiresAction:        intent.Status == stripe.PaymentIntentStatusRequiresAction,
		CancellationReason:    string(intent.CancellationReason),
	}
	if intent.LastPaymentError != nil {
		snap.LastErrorMessage = intent.LastPaymentError.Msg
	}
	return snap
}
