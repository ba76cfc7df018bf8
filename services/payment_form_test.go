package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
)

const testSecret = "pi_123_secret_abc"

var testNav = Navigation{ChargePointID: "CP01", ConnectorID: 1, TenantID: "t1"}

func capturable() *Authorization {
	return &Authorization{ID: "pi_123", Status: "requires_capture", Amount: 5000, Currency: "usd"}
}

func TestSubmitWithoutHandleIsNoop(t *testing.T) {
	provider := &fakeProvider{confirm: capturable()}
	form := NewPaymentForm("f1", testNav, "", nil, provider, nil)

	res, err := form.Submit(context.Background(), "pm_card", "https://example.com/CP01")

	assert.ErrorIs(t, err, ErrNoHandle)
	assert.Equal(t, FormIdle, res.State)
	assert.True(t, res.Disabled)
	confirms, _ := provider.Calls()
	assert.Zero(t, confirms)
}

func TestSubmitAuthorizedIsTerminal(t *testing.T) {
	provider := &fakeProvider{confirm: capturable()}
	ledger := &memoryLedger{}
	extra := url.Values{ParamConnectorID: {"1"}, ParamTenantID: {"t1"}}
	form := NewPaymentForm("f1", testNav, testSecret, extra, provider, ledger)

	res, err := form.Submit(context.Background(), "pm_card", "https://example.com/CP01?connectorId=1")
	require.NoError(t, err)

	assert.Equal(t, FormAuthorized, res.State)
	assert.Contains(t, res.RedirectURL, "payment_success=true&payment_intent=pi_123&connectorId=1&tenantId=t1")
	assert.Equal(t, "✓ Payment Authorized Successfully!\nPayment Intent: pi_123\nAmount: 50.00 USD\nStatus: requires_capture", res.Message)
	assert.True(t, res.Disabled)
	assert.True(t, form.Disabled())

	for i := 0; i < 3; i++ {
		_, err := form.Submit(context.Background(), "pm_card", "")
		assert.ErrorIs(t, err, ErrAlreadyAuthorized)
	}
	confirms, _ := provider.Calls()
	assert.Equal(t, 1, confirms)
	assert.Equal(t, "https://example.com/CP01?connectorId=1", provider.lastReturnURL)

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "pi_123", records[0].IntentID)
	assert.Equal(t, "CP01", records[0].ChargePointID)
	assert.Equal(t, int64(5000), records[0].Amount)
}

func TestSubmitProcessingBlocksResubmit(t *testing.T) {
	provider := &fakeProvider{confirm: &Authorization{ID: "pi_123", Status: "processing"}}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

	res, err := form.Submit(context.Background(), "pm_card", "")
	require.NoError(t, err)
	assert.Equal(t, FormProcessing, res.State)
	assert.Equal(t, "⏳ Payment is processing. Please wait...", res.Message)
	assert.True(t, res.Disabled)

	_, err = form.Submit(context.Background(), "pm_card", "")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	confirms, _ := provider.Calls()
	assert.Equal(t, 1, confirms)
}

func TestSubmitRequiresAction(t *testing.T) {
	provider := &fakeProvider{confirm: &Authorization{
		ID: "pi_123", Status: "requires_action", NextActionURL: "https://hooks.stripe.com/3ds",
	}}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

	res, err := form.Submit(context.Background(), "pm_card", "")
	require.NoError(t, err)
	assert.Equal(t, FormProcessing, res.State)
	assert.Equal(t, "https://hooks.stripe.com/3ds", res.ChallengeURL)
}

func TestSubmitRequiresNewMethodReenables(t *testing.T) {
	provider := &fakeProvider{confirm: &Authorization{ID: "pi_123", Status: "requires_payment_method"}}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

	res, err := form.Submit(context.Background(), "pm_card", "")
	require.NoError(t, err)
	assert.Equal(t, FormRequiresNewMethod, res.State)
	assert.False(t, res.Disabled)

	provider.confirm = capturable()
	res, err = form.Submit(context.Background(), "pm_other", "")
	require.NoError(t, err)
	assert.Equal(t, FormAuthorized, res.State)
}

func TestSubmitDeclines(t *testing.T) {
	cases := map[string]struct {
		err      error
		message  string
		wantKind ErrorKind
	}{
		"card declined": {
			err:      &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."},
			message:  "Your card was declined",
			wantKind: KindDecline,
		},
		"validation": {
			err:      &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "Your postal code is incomplete."},
			message:  "Your postal code is incomplete.",
			wantKind: KindDecline,
		},
		"network": {
			err:      errors.New("dial tcp: connection refused"),
			message:  "An unexpected error occurred. Please try again.",
			wantKind: KindTransport,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{confirmErr: tc.err}
			form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

			res, err := form.Submit(context.Background(), "pm_card", "")

			require.Error(t, err)
			assert.Equal(t, tc.wantKind, KindOf(err))
			assert.Equal(t, FormFailed, res.State)
			assert.Equal(t, tc.message, res.Message)
			assert.False(t, res.Disabled)
		})
	}
}

func TestSubmitWithoutCardDetails(t *testing.T) {
	provider := &fakeProvider{confirm: capturable()}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

	res, err := form.Submit(context.Background(), " ", "")

	assert.Equal(t, KindDecline, KindOf(err))
	assert.Equal(t, "Please enter your card details", res.Message)
	confirms, _ := provider.Calls()
	assert.Zero(t, confirms)
}

func TestVerifyReturnRunsOnce(t *testing.T) {
	provider := &fakeProvider{retrieve: capturable()}
	form := NewPaymentForm("f1", testNav, "", nil, provider, nil)

	res := form.VerifyReturn(context.Background(), testSecret)
	assert.Equal(t, FormAuthorized, res.State)

	res = form.VerifyReturn(context.Background(), testSecret)
	assert.Equal(t, FormAuthorized, res.State)

	_, retrieves := provider.Calls()
	assert.Equal(t, 1, retrieves)
	assert.Equal(t, testSecret, form.ClientSecret())
}

func TestVerifyReturnStatusMapping(t *testing.T) {
	cases := []struct {
		status  string
		state   FormState
		message string
	}{
		{"processing", FormProcessing, "⏳ Payment is still processing..."},
		{"requires_payment_method", FormRequiresNewMethod, "Authentication failed. Please try again with a different card."},
		{"canceled", FormFailed, "Payment status: canceled"},
		{"requires_action", FormFailed, "Payment status: requires_action"},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			provider := &fakeProvider{retrieve: &Authorization{ID: "pi_123", Status: tc.status}}
			form := NewPaymentForm("f1", testNav, "", nil, provider, nil)

			res := form.VerifyReturn(context.Background(), testSecret)

			assert.Equal(t, tc.state, res.State)
			assert.Equal(t, tc.message, res.Message)
		})
	}
}

func TestVerifyReturnProviderError(t *testing.T) {
	provider := &fakeProvider{retrieveErr: &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such payment_intent"}}
	form := NewPaymentForm("f1", testNav, "", nil, provider, nil)

	res := form.VerifyReturn(context.Background(), testSecret)

	assert.Equal(t, FormFailed, res.State)
	assert.Equal(t, "Verification failed: No such payment_intent", res.Message)
}

func TestVerifyReturnWithoutSecretDoesNothing(t *testing.T) {
	provider := &fakeProvider{retrieve: capturable()}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, nil)

	res := form.VerifyReturn(context.Background(), "")

	assert.Equal(t, FormIdle, res.State)
	_, retrieves := provider.Calls()
	assert.Zero(t, retrieves)
}

func TestVerifyReturnKeepsAuthorizedForm(t *testing.T) {
	provider := &fakeProvider{confirm: capturable(), retrieve: &Authorization{ID: "pi_123", Status: "canceled"}}
	ledger := &memoryLedger{}
	form := NewPaymentForm("f1", testNav, testSecret, nil, provider, ledger)

	res, err := form.Submit(context.Background(), "pm_card", "")
	require.NoError(t, err)
	require.Equal(t, FormAuthorized, res.State)

	res = form.VerifyReturn(context.Background(), testSecret)
	assert.Equal(t, FormAuthorized, res.State)
	assert.True(t, res.Disabled)
	assert.Contains(t, res.Message, "✓ Payment Authorized Successfully!")

	_, err = form.Submit(context.Background(), "pm_card", "")
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)

	confirms, retrieves := provider.Calls()
	assert.Equal(t, 1, confirms)
	assert.Zero(t, retrieves)
	assert.Len(t, ledger.Records(), 1)
}
