package http

import (
	"errors"
	"io"
	"net/http"

	"deposit-backend/internal/processor"
	"deposit-backend/internal/service"
)

// Stripe caps event payloads well below this; anything larger is junk.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives processor event deliveries
type WebhookHandler struct {
	reconciler service.WebhookReconciler
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler service.WebhookReconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleProcessorEvent verifies and ingests one webhook delivery. The
// processor retries non-2xx responses, so anything persisted must be
// acknowledged even when downstream processing fails.
func (h *WebhookHandler) HandleProcessorEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_body", "failed to read request body")
		return
	}

	result, err := h.reconciler.Ingest(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, processor.ErrSignatureInvalid) {
			respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
			return
		}
		// Persistence failed before acknowledgment: a 5xx makes the
		// processor redeliver.
		respondError(w, http.StatusInternalServerError, "ingest_failed", "event could not be recorded")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"duplicate": result.Duplicate,
	})
}
