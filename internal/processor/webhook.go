package processor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrSignatureInvalid marks deliveries whose signature did not verify.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Event types this service acts on. Anything else is persisted for the
// audit trail and acknowledged without effect.
const (
	EventTypeAmountCapturableUpdated = "payment_intent.amount_capturable_updated"
	EventTypeCanceled                = "payment_intent.canceled"
	EventTypeSucceeded               = "payment_intent.succeeded"
	EventTypePaymentFailed           = "payment_intent.payment_failed"
	EventTypePartiallyFunded         = "payment_intent.partially_funded"
	EventTypeChargeRefunded          = "charge.refunded"
)

// Event is a verified inbound processor notification, decoupled from the
// SDK's event type so the reconciler never imports the SDK.
type Event struct {
	ID               string
	Type             string
	Livemode         bool
	RelatedReference string
	Payload          []byte
}

// WebhookVerifier checks transport-level authenticity of inbound events
// against the shared signing secret. Verification fails closed: nothing
// is persisted for an event that does not verify.
type WebhookVerifier struct {
	signingSecret string
}

func NewWebhookVerifier(signingSecret string) *WebhookVerifier {
	return &WebhookVerifier{signingSecret: signingSecret}
}

func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signatureHeader, v.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := &Event{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Livemode: ev.Livemode,
		Payload:  ev.Data.Raw,
	}
	// The event object's own id correlates it to the payment: for
	// payment_intent.* events this is the intent reference.
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err == nil {
		out.RelatedReference = obj.ID
	}
	return out, nil
}

// ParseIntentSnapshot decodes the payment object embedded in a
// payment_intent.* event payload.
func ParseIntentSnapshot(payload []byte) (*Snapshot, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent payload: %w", err)
	}
	return snapshotFromIntent(&intent), nil
}
