package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
)

func TestIntentIDFromClientSecret(t *testing.T) {
	cases := map[string]string{
		"pi_123_secret_abc":       "pi_123",
		" pi_3Nk_secret_Zz9 ":     "pi_3Nk",
		"pi__secret_abc":          "",
		"pi_123_secret_":          "",
		"seti_123_secret_abc":     "",
		"https://pay.example.com": "",
		"":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, IntentIDFromClientSecret(in), in)
	}
}

func TestDeclineMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, DeclineCode: "insufficient_funds"}, "Insufficient funds"},
		{&stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeExpiredCard}, "Your card has expired"},
		{&stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeIncorrectCVC}, "Incorrect CVC"},
		{&stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card number is incorrect."}, "Your card number is incorrect."},
		{&stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "Internal"}, genericPaymentError},
		{fmt.Errorf("confirm: %w", &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}), "Your card was declined"},
		{errors.New("timeout"), genericPaymentError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeclineMessage(tc.err))
	}
}

func TestCachedProviderUsesSettledStatus(t *testing.T) {
	cache := NewMemoryAuthorizationCache(time.Minute, nil)
	require.NoError(t, cache.Put(context.Background(), Authorization{
		ID: "pi_123", Status: "requires_capture", Amount: 5000, Currency: "usd", ClientSecret: testSecret,
	}))
	inner := &fakeProvider{retrieve: &Authorization{ID: "pi_123", Status: "processing"}}
	provider := NewCachedProvider(inner, cache)

	auth, err := provider.RetrieveAuthorization(context.Background(), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "requires_capture", auth.Status)
	_, retrieves := inner.Calls()
	assert.Zero(t, retrieves)
}

func TestCachedProviderFallsThrough(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAuthorizationCache(time.Minute, nil)

	// Unsettled status.
	require.NoError(t, cache.Put(ctx, Authorization{ID: "pi_123", Status: "processing", ClientSecret: testSecret}))
	inner := &fakeProvider{retrieve: &Authorization{ID: "pi_123", Status: "requires_capture", ClientSecret: testSecret}}
	provider := NewCachedProvider(inner, cache)

	auth, err := provider.RetrieveAuthorization(ctx, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "requires_capture", auth.Status)

	cached, found, err := cache.Get(ctx, "pi_123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "requires_capture", cached.Status)

	// Different secret for the same intent id.
	_, err = provider.RetrieveAuthorization(ctx, "pi_123_secret_other")
	require.NoError(t, err)
	_, retrieves := inner.Calls()
	assert.Equal(t, 2, retrieves)
}

func TestCachedProviderConfirmStores(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAuthorizationCache(time.Minute, nil)
	inner := &fakeProvider{confirm: &Authorization{ID: "pi_123", Status: "requires_capture", ClientSecret: testSecret}}
	provider := NewCachedProvider(inner, cache)

	_, err := provider.ConfirmAuthorization(ctx, testSecret, "pm_card", "")
	require.NoError(t, err)

	_, found, err := cache.Get(ctx, "pi_123")
	require.NoError(t, err)
	assert.True(t, found)
}
