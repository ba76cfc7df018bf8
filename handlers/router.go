package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"guestcharge/metrics"
	"guestcharge/utils"
)

// Router wires every route. Fixed paths are registered before the charge point
// catch-all so they are never taken for a charge point id.
func (h *Handlers) Router() http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// Signature verified inside; no session auth.
	r.HandleFunc("/stripe-webhook", h.StripeWebhook).Methods(http.MethodPost)

	r.HandleFunc("/payments/{form}/submit", h.SubmitPayment).Methods(http.MethodPost)

	r.HandleFunc("/sessions/{view}/events", h.SessionEvents).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{view}/ws", h.SessionSocket).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{view}/stop", h.StopSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{view}/invoice", h.DownloadInvoice).Methods(http.MethodGet)

	op := r.PathPrefix("/operator").Subrouter()
	op.HandleFunc("/login", h.OperatorLogin).Methods(http.MethodGet, http.MethodPost)
	op.HandleFunc("/logout", h.OperatorLogout).Methods(http.MethodPost)
	op.Handle("/qr", h.RequireOperator(http.HandlerFunc(h.OperatorQR))).Methods(http.MethodGet)
	op.Handle("/qr.png", h.RequireOperator(http.HandlerFunc(h.OperatorQRImage))).Methods(http.MethodGet)

	r.Handle("/favicon.ico", http.NotFoundHandler())
	r.HandleFunc("/", h.Landing).Methods(http.MethodGet)
	r.HandleFunc("/{chargePoint}", h.ChargePoint).Methods(http.MethodGet)
	r.HandleFunc("/{chargePoint}/{connector}/success", h.SessionPage).Methods(http.MethodGet)
	r.HandleFunc("/{chargePoint}/{connector}/failure", h.PaymentFailure).Methods(http.MethodGet)

	return Chain(r, Recover, RequestID, Logging)
}

// Health reports liveness and the number of live pages.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{
		"status": "ok",
		"views":  h.deps.Views.Count(),
		"forms":  h.deps.Forms.Count(),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.Error("http", "Error writing health response", "error", err)
	}
}
