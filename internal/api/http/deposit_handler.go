package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/service"
)

// DepositHandler exposes the deposit lifecycle operations
type DepositHandler struct {
	deposits service.DepositService
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(deposits service.DepositService) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

type authorizeRequest struct {
	ReservationID   int64             `json:"reservation_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type authorizeResponse struct {
	Success        bool            `json:"success"`
	Deposit        *domain.Deposit `json:"deposit"`
	RequiresAction bool            `json:"requires_action"`
	ClientSecret   string          `json:"client_secret,omitempty"`
}

type depositResponse struct {
	Success bool            `json:"success"`
	Deposit *domain.Deposit `json:"deposit"`
}

// HandleAuthorize places a hold for a reservation's damage deposit
func (h *DepositHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed_body", "request body is not valid JSON")
		return
	}

	result, err := h.deposits.Authorize(r.Context(), req.ReservationID, req.PaymentMethodID, req.Metadata)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, authorizeResponse{
		Success:        true,
		Deposit:        result.Deposit,
		RequiresAction: result.RequiresAction,
		ClientSecret:   result.ClientSecret,
	})
}

type captureRequest struct {
	ReservationID int64  `json:"reservation_id"`
	AmountCents   int64  `json:"amount_cents"`
	Reason        string `json:"reason,omitempty"`
}

// HandleCapture converts part or all of an authorized hold into a charge
func (h *DepositHandler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed_body", "request body is not valid JSON")
		return
	}

	dep, err := h.deposits.Capture(r.Context(), req.ReservationID, req.AmountCents, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, depositResponse{Success: true, Deposit: dep})
}

type releaseRequest struct {
	ReservationID int64  `json:"reservation_id"`
	Reason        string `json:"reason,omitempty"`
}

// HandleRelease cancels the remaining hold without charging the guest
func (h *DepositHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed_body", "request body is not valid JSON")
		return
	}

	dep, err := h.deposits.Release(r.Context(), req.ReservationID, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, depositResponse{Success: true, Deposit: dep})
}

// HandleStatus returns the current deposit state for a reservation
func (h *DepositHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	reservationID, err := strconv.ParseInt(mux.Vars(r)["reservationID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_reservation_id", "reservation id must be an integer")
		return
	}

	dep, err := h.deposits.Status(r.Context(), reservationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, depositResponse{Success: true, Deposit: dep})
}
