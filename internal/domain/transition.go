package domain

// TransitionKind names an intended deposit transition. Client-driven
// transitions (authorize, capture, release) and the sweeper's expire are
// validated strictly; external processor events are applied leniently so
// redelivered or late notifications never error.
type TransitionKind string

const (
	TransitionAuthorize TransitionKind = "authorize"
	TransitionCapture   TransitionKind = "capture"
	TransitionRelease   TransitionKind = "release"
	TransitionExpire    TransitionKind = "expire"
	TransitionEvent     TransitionKind = "event"
)

// EventKind is a processor-native notification mapped into domain terms.
type EventKind string

const (
	EventAmountCapturable EventKind = "amount_capturable_updated"
	EventSucceeded        EventKind = "succeeded"
	EventCanceled         EventKind = "canceled"
	EventPaymentFailed    EventKind = "payment_failed"
	EventPartiallyFunded  EventKind = "partially_funded"
	EventChargeRefunded   EventKind = "charge_refunded"
)

// Transition carries everything Decide needs beyond the deposit row.
type Transition struct {
	Kind TransitionKind

	// Authorize: the reservation's hold policy amount, and the processor
	// outcome once known. A legality pre-check passes the zero flags.
	HoldAmountCents int64
	RequiresAction  bool
	Declined        bool

	// Capture: requested amount.
	AmountCents int64

	// Event: kind and the processor-reported amount that accompanies it
	// (amount_capturable for EventAmountCapturable, amount_received for
	// EventSucceeded).
	Event            EventKind
	EventAmountCents int64
}

// Outcome is the state Decide computed. NoChange means the transition is
// legal but produces no mutation (duplicate or irrelevant event).
type Outcome struct {
	Status                DepositStatus
	AuthorizedAmountCents int64
	CapturedAmountCents   int64
	StampAuthorized       bool
	StampCaptured         bool
	StampReleased         bool
	NoChange              bool
}

// Decide is the single transition decision function. It is pure: given
// the current deposit row (nil when none exists yet) and an intended
// transition, it either returns the resulting state or rejects the
// transition. It performs no I/O and never mutates its inputs.
func Decide(d *Deposit, t Transition) (Outcome, error) {
	switch t.Kind {
	case TransitionAuthorize:
		return decideAuthorize(d, t)
	case TransitionCapture:
		return decideCapture(d, t)
	case TransitionRelease:
		return decideRelease(d)
	case TransitionExpire:
		return decideExpire(d)
	case TransitionEvent:
		return decideEvent(d, t)
	}
	return Outcome{}, NewValidationError("transition", "unknown transition kind "+string(t.Kind))
}

func decideAuthorize(d *Deposit, t Transition) (Outcome, error) {
	if t.HoldAmountCents <= 0 {
		return Outcome{}, NewValidationError("hold_amount_cents", "reservation has no deposit policy amount")
	}
	if d != nil && d.Status != DepositStatusPending {
		return Outcome{}, &InvalidTransitionError{From: d.Status, Attempted: string(TransitionAuthorize)}
	}

	out := Outcome{Status: DepositStatusPending, AuthorizedAmountCents: t.HoldAmountCents}
	switch {
	case t.Declined:
		out.Status = DepositStatusFailed
	case t.RequiresAction:
		// Additional customer action outstanding; the
		// amount_capturable_updated event finishes the authorization.
		out.Status = DepositStatusPending
	default:
		out.Status = DepositStatusAuthorized
		out.StampAuthorized = true
	}
	return out, nil
}

func decideCapture(d *Deposit, t Transition) (Outcome, error) {
	if d == nil {
		return Outcome{}, ErrDepositNotFound
	}
	if d.Status != DepositStatusAuthorized {
		return Outcome{}, &InvalidTransitionError{From: d.Status, Attempted: string(TransitionCapture)}
	}
	if t.AmountCents <= 0 {
		return Outcome{}, NewValidationError("amount_cents", "capture amount must be positive")
	}
	remaining := d.RemainingCapturableCents()
	if t.AmountCents > remaining {
		return Outcome{}, NewValidationError("amount_cents", "capture amount exceeds remaining capturable amount")
	}

	out := Outcome{
		AuthorizedAmountCents: d.AuthorizedAmountCents,
		CapturedAmountCents:   d.CapturedAmountCents + t.AmountCents,
	}
	if t.AmountCents == remaining {
		out.Status = DepositStatusCaptured
		out.StampCaptured = true
	} else {
		// Partial capture: the remainder stays on hold.
		out.Status = DepositStatusAuthorized
	}
	return out, nil
}

func decideRelease(d *Deposit) (Outcome, error) {
	if d == nil {
		return Outcome{}, ErrDepositNotFound
	}
	if d.Status != DepositStatusPending && d.Status != DepositStatusAuthorized {
		return Outcome{}, &InvalidTransitionError{From: d.Status, Attempted: string(TransitionRelease)}
	}
	if d.CapturedAmountCents > 0 {
		return Outcome{}, &InvalidTransitionError{
			From:      d.Status,
			Attempted: string(TransitionRelease),
			Reason:    "deposit has captured funds",
		}
	}
	return Outcome{
		Status:                DepositStatusReleased,
		AuthorizedAmountCents: d.AuthorizedAmountCents,
		StampReleased:         true,
	}, nil
}

func decideExpire(d *Deposit) (Outcome, error) {
	if d == nil {
		return Outcome{}, ErrDepositNotFound
	}
	if d.Status != DepositStatusAuthorized {
		return Outcome{}, &InvalidTransitionError{From: d.Status, Attempted: string(TransitionExpire)}
	}
	if d.CapturedAmountCents > 0 {
		return Outcome{}, &InvalidTransitionError{
			From:      d.Status,
			Attempted: string(TransitionExpire),
			Reason:    "deposit has captured funds",
		}
	}
	return Outcome{
		Status:                DepositStatusExpired,
		AuthorizedAmountCents: d.AuthorizedAmountCents,
		StampReleased:         true,
	}, nil
}

// decideEvent maps processor-native states onto the deposit lifecycle.
// Events that arrive against a terminal or irrelevant status are absorbed
// as NoChange: the processor redelivers freely and out of order.
func decideEvent(d *Deposit, t Transition) (Outcome, error) {
	if d == nil {
		return Outcome{}, ErrDepositNotFound
	}

	noChange := Outcome{
		Status:                d.Status,
		AuthorizedAmountCents: d.AuthorizedAmountCents,
		CapturedAmountCents:   d.CapturedAmountCents,
		NoChange:              true,
	}
	active := d.Status == DepositStatusPending || d.Status == DepositStatusAuthorized

	switch t.Event {
	case EventAmountCapturable:
		if !active {
			return noChange, nil
		}
		// The processor reports the remaining capturable balance, which
		// after a partial capture excludes what was already settled.
		out := Outcome{
			Status:                DepositStatusAuthorized,
			AuthorizedAmountCents: d.CapturedAmountCents + t.EventAmountCents,
			CapturedAmountCents:   d.CapturedAmountCents,
			StampAuthorized:       d.AuthorizedAt == nil,
		}
		if t.EventAmountCents == 0 {
			out.AuthorizedAmountCents = d.AuthorizedAmountCents
		}
		return out, nil
	case EventSucceeded:
		if !active {
			return noChange, nil
		}
		captured := t.EventAmountCents
		if captured == 0 {
			captured = d.AuthorizedAmountCents
		}
		out := Outcome{
			Status:                DepositStatusCaptured,
			AuthorizedAmountCents: d.AuthorizedAmountCents,
			CapturedAmountCents:   captured,
			StampCaptured:         true,
		}
		// The processor is ground truth: if it settled more than we
		// recorded as authorized, raise the authorization to match.
		if captured > out.AuthorizedAmountCents {
			out.AuthorizedAmountCents = captured
		}
		return out, nil
	case EventCanceled:
		if !active {
			return noChange, nil
		}
		return Outcome{
			Status:                DepositStatusReleased,
			AuthorizedAmountCents: d.AuthorizedAmountCents,
			CapturedAmountCents:   d.CapturedAmountCents,
			StampReleased:         true,
		}, nil
	case EventPaymentFailed:
		if !active {
			return noChange, nil
		}
		return Outcome{
			Status:                DepositStatusFailed,
			AuthorizedAmountCents: d.AuthorizedAmountCents,
			CapturedAmountCents:   d.CapturedAmountCents,
		}, nil
	case EventPartiallyFunded, EventChargeRefunded:
		// Bookkeeping only; logged by the reconciler.
		return noChange, nil
	}
	return Outcome{}, NewValidationError("event", "unknown event kind "+string(t.Event))
}
