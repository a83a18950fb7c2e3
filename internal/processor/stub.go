package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Payment method ids the stub recognizes for exercising failure paths.
const (
	StubMethodRequiresAction = "pm_stub_requires_action"
	StubMethodDeclined       = "pm_stub_declined"
)

type stubIntent struct {
	amountCents           int64
	amountCapturableCents int64
	amountReceivedCents   int64
	status                string
}

// StubGateway is the test-mode processor: it keeps payment state in
// memory and enforces the same capturable-ceiling and state rules the
// real processor does, without any network traffic.
type StubGateway struct {
	mu      sync.Mutex
	intents map[string]*stubIntent
}

func NewStubGateway() *StubGateway {
	return &StubGateway{intents: make(map[string]*stubIntent)}
}

func (g *StubGateway) Authorize(_ context.Context, in AuthorizeInput) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if in.PaymentMethodID == StubMethodDeclined {
		return nil, newClientError(CodeCardDeclined, "card declined", nil)
	}

	ref := "pi_stub_" + uuid.NewString()
	intent := &stubIntent{
		amountCents:           in.AmountCents,
		amountCapturableCents: in.AmountCents,
		status:                StatusRequiresCapture,
	}
	if in.PaymentMethodID == StubMethodRequiresAction {
		intent.status = StatusRequiresAction
		intent.amountCapturableCents = 0
	}
	g.intents[ref] = intent
	return g.snapshotLocked(ref), nil
}

func (g *StubGateway) Capture(_ context.Context, reference string, amountCents *int64) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[reference]
	if !ok {
		return nil, newClientError(CodeProcessorRejected, fmt.Sprintf("no such payment: %s", reference), nil)
	}
	if intent.status != StatusRequiresCapture {
		return nil, newClientError(CodeInvalidState, "payment is not capturable in status "+intent.status, nil)
	}

	toCapture := intent.amountCapturableCents
	if amountCents != nil {
		toCapture = *amountCents
	}
	if toCapture <= 0 {
		return nil, newClientError(CodeAmountExceeded, "capture amount must be positive", nil)
	}
	if toCapture > intent.amountCapturableCents {
		return nil, newClientError(CodeAmountExceeded, "capture amount exceeds capturable amount", nil)
	}

	intent.amountCapturableCents -= toCapture
	intent.amountReceivedCents += toCapture
	if intent.amountCapturableCents == 0 {
		intent.status = StatusSucceeded
	}
	return g.snapshotLocked(reference), nil
}

func (g *StubGateway) Release(_ context.Context, reference string) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[reference]
	if !ok {
		return nil, newClientError(CodeProcessorRejected, fmt.Sprintf("no such payment: %s", reference), nil)
	}
	if intent.status == StatusCanceled || intent.status == StatusSucceeded {
		return g.snapshotLocked(reference), nil
	}
	switch intent.status {
	case StatusRequiresCapture, StatusRequiresAction, StatusRequiresPaymentMethod:
	default:
		return nil, newClientError(CodeInvalidState, "payment is not releasable in status "+intent.status, nil)
	}
	intent.status = StatusCanceled
	intent.amountCapturableCents = 0
	return g.snapshotLocked(reference), nil
}

func (g *StubGateway) Retrieve(_ context.Context, reference string) (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.intents[reference]; !ok {
		return nil, newClientError(CodeProcessorRejected, fmt.Sprintf("no such payment: %s", reference), nil)
	}
	return g.snapshotLocked(reference), nil
}

// CompleteAction simulates the customer finishing the additional-action
// challenge, moving the payment to capturable.
func (g *StubGateway) CompleteAction(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[reference]
	if !ok || intent.status != StatusRequiresAction {
		return
	}
	intent.status = StatusRequiresCapture
	intent.amountCapturableCents = intent.amountCents
}

func (g *StubGateway) snapshotLocked(reference string) *Snapshot {
	intent := g.intents[reference]
	return &Snapshot{
		Reference:             reference,
		Status:                intent.status,
		AmountCents:           intent.amountCents,
		AmountCapturableCents: intent.amountCapturableCents,
		AmountReceivedCents:   intent.amountReceivedCents,
		ClientSecret:          reference + "_secret",
		RequiresAction:        intent.status == StatusRequiresAction,
	}
}
