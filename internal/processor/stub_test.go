package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubGateway_Lifecycle(t *testing.T) {
	g := NewStubGateway()
	ctx := context.Background()

	snap, err := g.Authorize(ctx, AuthorizeInput{
		AmountCents:      30000,
		PaymentMethodID:  "pm_card_ok",
		SubjectReference: "RSV1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresCapture, snap.Status)
	assert.Equal(t, int64(30000), snap.AmountCapturableCents)
	assert.NotEmpty(t, snap.ClientSecret)

	ref := snap.Reference

	amount := int64(10000)
	snap, err = g.Capture(ctx, ref, &amount)
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresCapture, snap.Status)
	assert.Equal(t, int64(20000), snap.AmountCapturableCents)
	assert.Equal(t, int64(10000), snap.AmountReceivedCents)

	// Capturing the remainder settles the payment.
	snap, err = g.Capture(ctx, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, int64(30000), snap.AmountReceivedCents)

	// Further captures are rejected at the processor.
	_, err = g.Capture(ctx, ref, &amount)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, CodeInvalidState, pErr.Code)

	// Release of a settled payment is a no-op success.
	snap, err = g.Release(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, snap.Status)
}

func TestStubGateway_CaptureCeiling(t *testing.T) {
	g := NewStubGateway()
	ctx := context.Background()

	snap, err := g.Authorize(ctx, AuthorizeInput{AmountCents: 30000, PaymentMethodID: "pm_card_ok"})
	require.NoError(t, err)

	over := int64(31000)
	_, err = g.Capture(ctx, snap.Reference, &over)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, CodeAmountExceeded, pErr.Code)
	assert.True(t, IsClient(err))
}

func TestStubGateway_Declined(t *testing.T) {
	g := NewStubGateway()

	_, err := g.Authorize(context.Background(), AuthorizeInput{AmountCents: 30000, PaymentMethodID: StubMethodDeclined})
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, CodeCardDeclined, pErr.Code)
	assert.True(t, IsClient(err))
	assert.False(t, IsTransient(err))
}

func TestStubGateway_RequiresAction(t *testing.T) {
	g := NewStubGateway()
	ctx := context.Background()

	snap, err := g.Authorize(ctx, AuthorizeInput{AmountCents: 30000, PaymentMethodID: StubMethodRequiresAction})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresAction, snap.Status)
	assert.True(t, snap.RequiresAction)
	assert.Equal(t, int64(0), snap.AmountCapturableCents)

	// Nothing is capturable until the customer completes the challenge.
	amount := int64(1000)
	_, err = g.Capture(ctx, snap.Reference, &amount)
	assert.Error(t, err)

	g.CompleteAction(snap.Reference)
	snap, err = g.Retrieve(ctx, snap.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresCapture, snap.Status)
	assert.Equal(t, int64(30000), snap.AmountCapturableCents)
}

func TestStubGateway_ReleaseCancels(t *testing.T) {
	g := NewStubGateway()
	ctx := context.Background()

	snap, err := g.Authorize(ctx, AuthorizeInput{AmountCents: 30000, PaymentMethodID: "pm_card_ok"})
	require.NoError(t, err)

	snap, err = g.Release(ctx, snap.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, snap.Status)
	assert.Equal(t, int64(0), snap.AmountCapturableCents)

	// Releasing again stays a success.
	snap, err = g.Release(ctx, snap.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, snap.Status)
}

func TestIdempotencyKey(t *testing.T) {
	k1 := idempotencyKey("capture", "pi_1", 10000, "eur")
	k2 := idempotencyKey("capture", "pi_1", 10000, "eur")

	assert.True(t, strings.HasPrefix(k1, "dep_capture_"))
	// Fresh salt per logical operation instance: two captures of the same
	// amount are distinct processor operations.
	assert.NotEqual(t, k1, k2)
	assert.LessOrEqual(t, len(k1), 255)
}
