package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/logger"
	"deposit-backend/internal/processor"
)

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondServiceError translates service-layer errors into the API's
// error contract. Unrecognized errors become an opaque 500 so internal
// details never leak to callers.
func respondServiceError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code:    "validation_failed",
			Message: vErr.Error(),
			Field:   vErr.Field,
		}})
		return
	}

	var tErr *domain.InvalidTransitionError
	if errors.As(err, &tErr) {
		respondError(w, http.StatusUnprocessableEntity, "invalid_transition", tErr.Error())
		return
	}

	var pErr *processor.Error
	if errors.As(err, &pErr) && pErr.Class == processor.ErrorClassClient {
		respondError(w, http.StatusUnprocessableEntity, pErr.Code, pErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		respondError(w, http.StatusNotFound, "reservation_not_found", "reservation not found")
	case errors.Is(err, domain.ErrDepositNotFound):
		respondError(w, http.StatusNotFound, "deposit_not_found", "no deposit exists for this reservation")
	case errors.Is(err, domain.ErrDepositExists):
		respondError(w, http.StatusConflict, "deposit_exists", "a deposit already exists for this reservation")
	default:
		logger.Error("Unhandled service error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
