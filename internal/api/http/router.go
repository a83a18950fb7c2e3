package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"deposit-backend/internal/security"
	"deposit-backend/internal/service"
)

// NewRouter builds the full HTTP surface. The deposit API sits behind
// bearer auth; the webhook endpoint authenticates by signature instead.
func NewRouter(
	deposits service.DepositService,
	reconciler service.WebhookReconciler,
	tokens security.TokenManager,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	webhookHandler := NewWebhookHandler(reconciler)
	router.HandleFunc("/webhooks/processor", webhookHandler.HandleProcessorEvent).Methods("POST")

	depositHandler := NewDepositHandler(deposits)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(tokens))
	write := RequireScope(ScopeDepositsWrite)
	read := RequireScope(ScopeDepositsRead)
	api.Handle("/deposits/authorize", write(http.HandlerFunc(depositHandler.HandleAuthorize))).Methods("POST")
	api.Handle("/deposits/capture", write(http.HandlerFunc(depositHandler.HandleCapture))).Methods("POST")
	api.Handle("/deposits/release", write(http.HandlerFunc(depositHandler.HandleRelease))).Methods("POST")
	api.Handle("/deposits/{reservationID}/status", read(http.HandlerFunc(depositHandler.HandleStatus))).Methods("GET")

	return router
}
