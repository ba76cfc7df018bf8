package services

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query parameters threaded through the guest flow.
const (
	ParamConnectorID        = "connectorId"
	ParamTenantID           = "tenantId"
	ParamToken              = "token"
	ParamPaymentSuccess     = "payment_success"
	ParamPaymentIntent      = "payment_intent"
	ParamIntentClientSecret = "payment_intent_client_secret"
	ParamRedirectStatus     = "redirect_status"
)

// Field names reported in input errors.
const (
	FieldChargePoint = "chargePointId"
	FieldConnector   = "connectorId"
	FieldTenant      = "tenantId"
	FieldToken       = "token"
)

// Problem tells a missing value apart from one that is present but unusable.
type Problem string

const (
	ProblemMissing   Problem = "missing"
	ProblemMalformed Problem = "malformed"
	ProblemExpired   Problem = "expired"
)

// InputError is a terminal problem with the link the guest opened.
type InputError struct {
	Field   string
	Problem Problem
	Message string
}

func (e *InputError) Error() string {
	return e.Field + " " + string(e.Problem) + ": " + e.Message
}

// Navigation is the identifier set carried from page to page through the query string.
type Navigation struct {
	ChargePointID string
	ConnectorID   int
	TenantID      string
}

// ParseNavigation validates the charge point path segment and the query values.
// Connector id must be a base-10 integer of at least 1; tenant id is only checked
// when requireTenant is set.
func ParseNavigation(chargePointID string, q url.Values, requireTenant bool) (Navigation, error) {
	chargePointID = strings.TrimSpace(chargePointID)
	if chargePointID == "" {
		return Navigation{}, &InputError{
			Field:   FieldChargePoint,
			Problem: ProblemMissing,
			Message: "Charge point ID is required",
		}
	}

	raw := strings.TrimSpace(q.Get(ParamConnectorID))
	if raw == "" {
		return Navigation{}, &InputError{
			Field:   FieldConnector,
			Problem: ProblemMissing,
			Message: "Connector ID is required. Please provide ?connectorId= in the URL",
		}
	}
	connectorID, err := strconv.Atoi(raw)
	if err != nil || connectorID < 1 {
		return Navigation{}, &InputError{
			Field:   FieldConnector,
			Problem: ProblemMalformed,
			Message: "Invalid connector ID. Must be a number",
		}
	}

	tenantID := strings.TrimSpace(q.Get(ParamTenantID))
	if requireTenant && tenantID == "" {
		return Navigation{}, &InputError{
			Field:   FieldTenant,
			Problem: ProblemMissing,
			Message: "Tenant ID is required. Please provide ?tenantId= in the URL",
		}
	}

	return Navigation{
		ChargePointID: chargePointID,
		ConnectorID:   connectorID,
		TenantID:      tenantID,
	}, nil
}

// Query encodes the navigation identifiers.
func (n Navigation) Query() url.Values {
	q := url.Values{}
	q.Set(ParamConnectorID, strconv.Itoa(n.ConnectorID))
	if n.TenantID != "" {
		q.Set(ParamTenantID, n.TenantID)
	}
	return q
}

// EntryURL is the charge point page for this navigation.
func (n Navigation) EntryURL() string {
	return "/" + url.PathEscape(n.ChargePointID) + "?" + n.Query().Encode()
}

// SuccessRedirectURL is where the guest lands once the hold is placed. The
// success markers come first, then the identifiers, then any other parameters
// the page was opened with. Provider return markers are dropped.
func (n Navigation) SuccessRedirectURL(intentID string, extra url.Values) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(url.PathEscape(n.ChargePointID))
	sep := byte('?')
	write := func(k, v string) {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	write(ParamPaymentSuccess, "true")
	write(ParamPaymentIntent, intentID)
	write(ParamConnectorID, strconv.Itoa(n.ConnectorID))
	if n.TenantID != "" {
		write(ParamTenantID, n.TenantID)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		switch k {
		case ParamPaymentSuccess, ParamPaymentIntent, ParamConnectorID, ParamTenantID,
			ParamIntentClientSecret, ParamRedirectStatus:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range extra[k] {
			write(k, v)
		}
	}
	return b.String()
}

// FailureURL is the payment failure page for this navigation.
func (n Navigation) FailureURL() string {
	return "/" + url.PathEscape(n.ChargePointID) + "/" + strconv.Itoa(n.ConnectorID) + "/failure"
}

// RetryURL restarts the payment flow from the charge point page.
func RetryURL(chargePointID, connectorID string) string {
	q := url.Values{}
	q.Set(ParamConnectorID, connectorID)
	return "/" + url.PathEscape(chargePointID) + "?" + q.Encode()
}
