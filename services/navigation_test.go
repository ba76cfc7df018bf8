package services

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNavigationMissingConnector(t *testing.T) {
	_, err := ParseNavigation("CP01", url.Values{}, false)

	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, FieldConnector, inErr.Field)
	assert.Equal(t, ProblemMissing, inErr.Problem)
	assert.Equal(t, "Connector ID is required. Please provide ?connectorId= in the URL", inErr.Message)
	assert.Equal(t, KindInput, KindOf(err))
}

func TestParseNavigationMalformedConnector(t *testing.T) {
	for _, raw := range []string{"abc", "1.5", "1e3", "0x10", "-3", "0", "12abc", "99999999999999999999999"} {
		t.Run(raw, func(t *testing.T) {
			q := url.Values{ParamConnectorID: {raw}}

			_, err := ParseNavigation("CP01", q, false)

			var inErr *InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, ProblemMalformed, inErr.Problem)
			assert.Equal(t, "Invalid connector ID. Must be a number", inErr.Message)
		})
	}
}

func TestParseNavigationTenant(t *testing.T) {
	q := url.Values{ParamConnectorID: {"2"}}

	nav, err := ParseNavigation("CP01", q, false)
	require.NoError(t, err)
	assert.Equal(t, Navigation{ChargePointID: "CP01", ConnectorID: 2}, nav)

	_, err = ParseNavigation("CP01", q, true)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, FieldTenant, inErr.Field)
	assert.Equal(t, ProblemMissing, inErr.Problem)
}

func TestParseNavigationMissingChargePoint(t *testing.T) {
	_, err := ParseNavigation("  ", url.Values{ParamConnectorID: {"1"}}, false)

	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, FieldChargePoint, inErr.Field)
}

func TestSuccessRedirectURL(t *testing.T) {
	nav := Navigation{ChargePointID: "CP01", ConnectorID: 1, TenantID: "t1"}
	extra := url.Values{
		ParamConnectorID:        {"1"},
		ParamTenantID:           {"t1"},
		ParamIntentClientSecret: {"pi_123_secret_abc"},
		ParamRedirectStatus:     {"succeeded"},
		"lang":                  {"en"},
	}

	got := nav.SuccessRedirectURL("pi_123", extra)

	assert.Equal(t, "/CP01?payment_success=true&payment_intent=pi_123&connectorId=1&tenantId=t1&lang=en", got)
}

func TestSuccessRedirectURLWithoutTenant(t *testing.T) {
	nav := Navigation{ChargePointID: "CP 7", ConnectorID: 3}

	got := nav.SuccessRedirectURL("pi_9", nil)

	assert.Equal(t, "/CP%207?payment_success=true&payment_intent=pi_9&connectorId=3", got)
}

func TestRetryAndFailureURLs(t *testing.T) {
	nav := Navigation{ChargePointID: "CP01", ConnectorID: 4, TenantID: "t1"}

	assert.Equal(t, "/CP01?connectorId=4", RetryURL("CP01", "4"))
	assert.Equal(t, "/CP01/4/failure", nav.FailureURL())
	assert.Equal(t, "/CP01?connectorId=4&tenantId=t1", nav.EntryURL())
}
