package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"guestcharge/metrics"
	"guestcharge/services"
	"guestcharge/utils"
)

const maxWebhookBody = 65536

// cachedIntentEvents are the payment intent events that feed the authorization cache.
var cachedIntentEvents = map[string]bool{
	"payment_intent.amount_capturable_updated": true,
	"payment_intent.processing":                true,
	"payment_intent.payment_failed":            true,
	"payment_intent.canceled":                  true,
	"payment_intent.succeeded":                 true,
}

// StripeWebhook verifies provider events and records the latest intent status, so
// a guest returning from a challenge page is answered without another API call.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.Error("webhook", "Error reading webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	webhookSecret := h.deps.Config.Stripe.WebhookSecret
	if webhookSecret == "" {
		utils.Warn("webhook", "Stripe webhook secret not configured")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), webhookSecret)
	if err != nil {
		utils.Error("webhook", "Signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	eventType := string(event.Type)
	metrics.WebhookEvents.WithLabelValues(eventType).Inc()
	utils.Info("webhook", "Received event", "type", eventType, "id", event.ID)

	if !cachedIntentEvents[eventType] {
		utils.Debug("webhook", "Ignoring event type", "type", eventType)
		w.WriteHeader(http.StatusOK)
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		utils.Error("webhook", "Error parsing payment intent", "type", eventType, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// An empty client secret keeps the one already cached.
	auth := services.Authorization{
		ID:           intent.ID,
		Status:       string(intent.Status),
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		ClientSecret: intent.ClientSecret,
	}
	if err := h.deps.Cache.Put(r.Context(), auth); err != nil {
		utils.Error("webhook", "Error caching authorization", "payment_intent", intent.ID, "error", err)
		// Let the provider retry the delivery.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if intent.LastPaymentError != nil {
		utils.Warn("webhook", "Payment intent failed", "payment_intent", intent.ID, "reason", intent.LastPaymentError.Msg)
	}
	utils.Debug("webhook", "Cached authorization status", "payment_intent", intent.ID, "status", auth.Status)
	w.WriteHeader(http.StatusOK)
}
