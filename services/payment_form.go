package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v74"

	"guestcharge/metrics"
	"guestcharge/utils"
)

// FormState is the state of a payment form.
type FormState string

const (
	FormIdle              FormState = "idle"
	FormSubmitting        FormState = "submitting"
	FormAuthorized        FormState = "authorized"
	FormProcessing        FormState = "processing"
	FormRequiresNewMethod FormState = "requires-new-method"
	FormFailed            FormState = "failed"
)

var (
	ErrNoHandle           = errors.New("no authorization handle is bound to the form")
	ErrAlreadyAuthorized  = errors.New("payment is already authorized")
	ErrSubmissionInFlight = errors.New("payment is already being processed")
)

// Authorization is the provider's view of a payment intent.
type Authorization struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	NextActionURL string `json:"next_action_url,omitempty"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

// PaymentProvider confirms and retrieves payment intents by client secret.
type PaymentProvider interface {
	ConfirmAuthorization(ctx context.Context, clientSecret, paymentMethodID, returnURL string) (*Authorization, error)
	RetrieveAuthorization(ctx context.Context, clientSecret string) (*Authorization, error)
}

// FormResult is what the payment form renders.
type FormResult struct {
	State        FormState
	Message      string
	RedirectURL  string
	ChallengeURL string
	Disabled     bool
}

// PaymentForm binds one authorization handle to the submit state machine.
type PaymentForm struct {
	ID  string
	Nav Navigation

	clientSecret string
	extra        url.Values
	provider     PaymentProvider
	ledger       Ledger

	mu            sync.Mutex
	createdAt     time.Time
	state         FormState
	message       string
	redirectURL   string
	challengeURL  string
	afterRedirect bool
	verified      bool
	recorded      bool
}

// NewPaymentForm creates an idle form. extra holds the query parameters the page
// was opened with; they are carried into the success redirect.
func NewPaymentForm(id string, nav Navigation, clientSecret string, extra url.Values, provider PaymentProvider, ledger Ledger) *PaymentForm {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &PaymentForm{
		ID:           id,
		Nav:          nav,
		clientSecret: clientSecret,
		extra:        extra,
		provider:     provider,
		ledger:       ledger,
		createdAt:    time.Now(),
		state:        FormIdle,
	}
}

// ClientSecret returns the bound authorization handle.
func (f *PaymentForm) ClientSecret() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientSecret
}

// CreatedAt returns when the form was created, or registered if it went
// through a PaymentFormRegistry.
func (f *PaymentForm) CreatedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createdAt
}

func (f *PaymentForm) stamp(t time.Time) {
	f.mu.Lock()
	f.createdAt = t
	f.mu.Unlock()
}

// Snapshot returns the current result.
func (f *PaymentForm) Snapshot() FormResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultLocked()
}

// Disabled reports whether the submit control is disabled.
func (f *PaymentForm) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabledLocked()
}

func (f *PaymentForm) disabledLocked() bool {
	switch f.state {
	case FormSubmitting, FormProcessing, FormAuthorized:
		return true
	}
	return f.clientSecret == ""
}

func (f *PaymentForm) resultLocked() FormResult {
	return FormResult{
		State:        f.state,
		Message:      f.message,
		RedirectURL:  f.redirectURL,
		ChallengeURL: f.challengeURL,
		Disabled:     f.disabledLocked(),
	}
}

// Submit confirms the authorization with the given payment method. It makes no
// provider call when no handle is bound, when the payment is already authorized
// or while a previous submission is unresolved.
func (f *PaymentForm) Submit(ctx context.Context, paymentMethodID, returnURL string) (FormResult, error) {
	f.mu.Lock()
	switch {
	case f.clientSecret == "":
		defer f.mu.Unlock()
		return f.resultLocked(), ErrNoHandle
	case f.state == FormAuthorized:
		defer f.mu.Unlock()
		return f.resultLocked(), ErrAlreadyAuthorized
	case f.state == FormSubmitting || f.state == FormProcessing:
		defer f.mu.Unlock()
		return f.resultLocked(), ErrSubmissionInFlight
	}

	if strings.TrimSpace(paymentMethodID) == "" {
		defer f.mu.Unlock()
		f.state = FormFailed
		f.message = "Please enter your card details"
		return f.resultLocked(), newError(KindDecline, f.message, nil)
	}

	f.state = FormSubmitting
	f.message = ""
	secret := f.clientSecret
	f.mu.Unlock()

	auth, err := f.provider.ConfirmAuthorization(ctx, secret, paymentMethodID, returnURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		utils.Error("payment", "Payment confirmation failed", "form_id", f.ID, "error", err)
		f.state = FormFailed
		f.message = DeclineMessage(err)
		metrics.Authorizations.WithLabelValues(string(f.state)).Inc()
		return f.resultLocked(), classifyProviderError(err, f.message)
	}
	f.applyLocked(ctx, auth, false)
	return f.resultLocked(), nil
}

// VerifyReturn re-queries the provider after the guest returns from an external
// challenge page. It runs once per form and never touches an authorized form;
// later calls return the current result.
func (f *PaymentForm) VerifyReturn(ctx context.Context, clientSecret string) FormResult {
	f.mu.Lock()
	if f.verified || f.state == FormAuthorized || strings.TrimSpace(clientSecret) == "" {
		defer f.mu.Unlock()
		return f.resultLocked()
	}
	f.verified = true
	f.afterRedirect = true
	if f.clientSecret == "" {
		f.clientSecret = clientSecret
	}
	f.state = FormSubmitting
	f.message = "⏳ Verifying payment..."
	f.mu.Unlock()

	auth, err := f.provider.RetrieveAuthorization(ctx, clientSecret)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		utils.Error("payment", "Payment verification failed", "form_id", f.ID, "error", err)
		f.state = FormFailed
		var se *stripe.Error
		if errors.As(err, &se) && se.Msg != "" {
			f.message = "Verification failed: " + se.Msg
		} else {
			f.message = "Failed to verify payment status."
		}
		metrics.Authorizations.WithLabelValues(string(f.state)).Inc()
		return f.resultLocked()
	}
	f.applyLocked(ctx, auth, true)
	return f.resultLocked()
}

func (f *PaymentForm) applyLocked(ctx context.Context, auth *Authorization, returning bool) {
	f.challengeURL = ""
	switch auth.Status {
	case string(stripe.PaymentIntentStatusRequiresCapture):
		f.authorizedLocked(ctx, auth)
	case string(stripe.PaymentIntentStatusProcessing):
		f.state = FormProcessing
		if returning {
			f.message = "⏳ Payment is still processing..."
		} else {
			f.message = "⏳ Payment is processing. Please wait..."
		}
	case string(stripe.PaymentIntentStatusRequiresAction):
		if auth.NextActionURL != "" && !returning {
			f.state = FormProcessing
			f.challengeURL = auth.NextActionURL
			f.message = "⏳ Additional verification required. Redirecting to your bank..."
		} else {
			f.state = FormFailed
			f.message = fmt.Sprintf("Payment status: %s", auth.Status)
		}
	case string(stripe.PaymentIntentStatusRequiresPaymentMethod):
		f.state = FormRequiresNewMethod
		if returning || f.afterRedirect {
			f.message = "Authentication failed. Please try again with a different card."
		} else {
			f.message = "Your card was declined. Please try a different card."
		}
	default:
		f.state = FormFailed
		f.message = fmt.Sprintf("Payment status: %s", auth.Status)
	}
	metrics.Authorizations.WithLabelValues(string(f.state)).Inc()
}

func (f *PaymentForm) authorizedLocked(ctx context.Context, auth *Authorization) {
	f.state = FormAuthorized
	currency := strings.ToUpper(auth.Currency)
	f.message = fmt.Sprintf("✓ Payment Authorized Successfully!\nPayment Intent: %s\nAmount: %.2f %s\nStatus: %s",
		auth.ID, float64(auth.Amount)/100, currency, auth.Status)
	f.redirectURL = f.Nav.SuccessRedirectURL(auth.ID, f.extra)

	if f.recorded {
		return
	}
	f.recorded = true

	utils.Info("payment", "Payment authorized",
		"charge_point_id", f.Nav.ChargePointID,
		"connector_id", f.Nav.ConnectorID,
		"tenant_id", f.Nav.TenantID,
		"payment_intent", auth.ID,
		"status", auth.Status,
		"amount", auth.Amount,
		"currency", auth.Currency,
	)

	record := AuthorizationRecord{
		Time:          time.Now(),
		IntentID:      auth.ID,
		ChargePointID: f.Nav.ChargePointID,
		ConnectorID:   f.Nav.ConnectorID,
		TenantID:      f.Nav.TenantID,
		Amount:        auth.Amount,
		Currency:      auth.Currency,
		Status:        auth.Status,
	}
	if err := f.ledger.Record(ctx, record); err != nil {
		utils.Error("payment", "Error recording authorization", "payment_intent", auth.ID, "error", err)
	}
}

func classifyProviderError(err error, message string) error {
	var se *stripe.Error
	if errors.As(err, &se) && (se.Type == stripe.ErrorTypeCard || se.Type == stripe.ErrorTypeInvalidRequest) {
		return newError(KindDecline, message, err)
	}
	return newError(KindTransport, message, err)
}
