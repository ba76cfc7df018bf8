package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"guestcharge/utils"
)

const genericPaymentError = "An unexpected error occurred. Please try again."

// IntentIDFromClientSecret extracts the payment intent id from a client secret
// of the form pi_..._secret_.... It returns "" when the secret is malformed.
func IntentIDFromClientSecret(clientSecret string) string {
	clientSecret = strings.TrimSpace(clientSecret)
	if !strings.HasPrefix(clientSecret, "pi_") {
		return ""
	}
	i := strings.Index(clientSecret, "_secret_")
	if i <= len("pi_") || i+len("_secret_") >= len(clientSecret) {
		return ""
	}
	return clientSecret[:i]
}

// DeclineMessage turns a provider error into text for the guest. Card and
// validation errors are user-correctable and keep the provider's wording.
func DeclineMessage(err error) string {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return genericPaymentError
	}

	if string(stripeErr.DeclineCode) == "insufficient_funds" {
		return "Insufficient funds"
	}
	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined:
		return "Your card was declined"
	case stripe.ErrorCodeIncorrectCVC:
		return "Incorrect CVC"
	case stripe.ErrorCodeExpiredCard:
		return "Your card has expired"
	}

	if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		if stripeErr.Msg != "" {
			return stripeErr.Msg
		}
		return "An error occurred"
	}
	return genericPaymentError
}

// StripeProvider confirms and retrieves payment intents with the secret key.
type StripeProvider struct {
	client *paymentintent.Client
}

// NewStripeProvider builds a provider bound to secretKey.
func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{
		client: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

// ConfirmAuthorization confirms the intent behind clientSecret with a payment method
// created in the browser. The intent uses manual capture, so success is requires_capture.
func (p *StripeProvider) ConfirmAuthorization(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (*Authorization, error) {
	id := IntentIDFromClientSecret(clientSecret)
	if id == "" {
		return nil, newError(KindInput, "Invalid payment details", errors.New("malformed client secret"))
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	params.Context = ctx

	pi, err := p.client.Confirm(id, params)
	if err != nil {
		return nil, err
	}
	return authorizationFromIntent(pi), nil
}

// RetrieveAuthorization reads the intent behind clientSecret. The secret must match
// the one the provider holds for that intent.
func (p *StripeProvider) RetrieveAuthorization(ctx context.Context, clientSecret string) (*Authorization, error) {
	id := IntentIDFromClientSecret(clientSecret)
	if id == "" {
		return nil, newError(KindInput, "Invalid payment details", errors.New("malformed client secret"))
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.client.Get(id, params)
	if err != nil {
		return nil, err
	}
	if pi.ClientSecret != "" && pi.ClientSecret != clientSecret {
		return nil, newError(KindInput, "Invalid payment details", fmt.Errorf("client secret does not match intent %s", id))
	}
	return authorizationFromIntent(pi), nil
}

func authorizationFromIntent(pi *stripe.PaymentIntent) *Authorization {
	auth := &Authorization{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		auth.NextActionURL = pi.NextAction.RedirectToURL.URL
	}
	return auth
}

// settledStatuses are statuses that will not change without further action, so a
// cached copy is as good as asking the provider.
var settledStatuses = map[string]bool{
	string(stripe.PaymentIntentStatusRequiresCapture):       true,
	string(stripe.PaymentIntentStatusRequiresPaymentMethod): true,
	string(stripe.PaymentIntentStatusCanceled):              true,
	string(stripe.PaymentIntentStatusSucceeded):             true,
}

// CachedProvider consults the webhook-fed authorization cache before the provider API.
type CachedProvider struct {
	PaymentProvider
	cache AuthorizationCache
}

// NewCachedProvider wraps provider with cache.
func NewCachedProvider(provider PaymentProvider, cache AuthorizationCache) *CachedProvider {
	return &CachedProvider{PaymentProvider: provider, cache: cache}
}

// ConfirmAuthorization confirms through the provider and caches the result.
func (p *CachedProvider) ConfirmAuthorization(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (*Authorization, error) {
	auth, err := p.PaymentProvider.ConfirmAuthorization(ctx, clientSecret, paymentMethodID, returnURL)
	if err != nil {
		return nil, err
	}
	p.store(ctx, auth)
	return auth, nil
}

// RetrieveAuthorization returns a cached settled status when one is known for the
// same client secret, otherwise asks the provider.
func (p *CachedProvider) RetrieveAuthorization(ctx context.Context, clientSecret string) (*Authorization, error) {
	id := IntentIDFromClientSecret(clientSecret)
	if id != "" {
		cached, found, err := p.cache.Get(ctx, id)
		if err != nil {
			utils.Warn("payment", "Authorization cache lookup failed", "payment_intent", id, "error", err)
		} else if found && settledStatuses[cached.Status] && cached.ClientSecret == clientSecret {
			utils.Debug("payment", "Using cached authorization status", "payment_intent", id, "status", cached.Status)
			return cached, nil
		}
	}

	auth, err := p.PaymentProvider.RetrieveAuthorization(ctx, clientSecret)
	if err != nil {
		return nil, err
	}
	p.store(ctx, auth)
	return auth, nil
}

func (p *CachedProvider) store(ctx context.Context, auth *Authorization) {
	if err := p.cache.Put(ctx, *auth); err != nil {
		utils.Warn("payment", "Authorization cache write failed", "payment_intent", auth.ID, "error", err)
	}
}
