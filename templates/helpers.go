package templates

import (
	"net/url"
	"strings"

	"guestcharge/services"
)

const (
	// SessionUpdateEvent is the SSE event name the session shell swaps on.
	SessionUpdateEvent = "session-update"
	// SessionContentID is the element the stream and the stop action replace.
	SessionContentID = "session-content"

	TransportSSE = "sse"
	TransportWS  = "ws"
)

// SessionPaths returns the per-view endpoints, each carrying the session token.
func SessionPaths(viewID, token string) (events, ws string, actions SessionActions) {
	q := "?token=" + url.QueryEscape(token)
	base := "/sessions/" + url.PathEscape(viewID)
	return base + "/events" + q, base + "/ws" + q, SessionActions{
		StopURL:    base + "/stop" + q,
		InvoiceURL: base + "/invoice" + q,
	}
}

var failureReasons = []string{
	"Insufficient funds in your account",
	"Card details entered incorrectly",
	"Card expired or blocked",
	"Payment cancelled during authorization",
	"Network connectivity issues",
}

func (d ErrorPageData) heading() string {
	if d.Title == "" {
		return "Error"
	}
	return d.Title
}

func messageClass(state services.FormState) string {
	switch state {
	case services.FormAuthorized:
		return "message message-success"
	case services.FormProcessing, services.FormSubmitting:
		return "message message-info"
	default:
		return "message message-error"
	}
}

func submitLabel(state services.FormState) string {
	if state == services.FormAuthorized {
		return "✓ Payment Authorized"
	}
	return "Authorize Payment"
}

func isTestKey(key string) bool {
	return strings.HasPrefix(key, "pk_test_")
}

type costRow struct {
	label string
	value string
}

// costBreakdown lists the summary rows. Missing components render as zero.
func costBreakdown(s *services.Session) []costRow {
	return []costRow{
		{"Energy cost", FormatCost(s.Currency, s.TotalEnergyCost)},
		{"Time cost", FormatCost(s.Currency, s.TotalTimeCost)},
		{"Parking cost", FormatCost(s.Currency, s.TotalParkingCost)},
		{"Fixed cost", FormatCost(s.Currency, s.TotalFixedCost)},
		{"Duration", FormatDuration(s.TotalTime)},
		{"Energy", FormatEnergy(s.TotalEnergy)},
	}
}
