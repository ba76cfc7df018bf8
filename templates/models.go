package templates

import "guestcharge/services"

// ErrorPageData describes a terminal page-level error.
type ErrorPageData struct {
	Title   string
	Message string
	// Retry shows a "Try Again" button that reloads the page.
	Retry bool
}

// PaymentFormData is the card form bound to one authorization handle.
type PaymentFormData struct {
	FormID          string
	ChargePointID   string
	ConnectorID     int
	StripePublicKey string
	ClientSecret    string
	SubmitURL       string
	Result          services.FormResult
}

// SessionPageData is the shell of a live session page.
type SessionPageData struct {
	ViewID        string
	Token         string
	ChargePointID string
	ConnectorID   string
	// Transport is "sse" or "ws".
	Transport string
	State     services.ViewState
}

// SessionActions are the per-view endpoints the session fragment posts to.
type SessionActions struct {
	StopURL    string
	InvoiceURL string
}

// OperatorQRData is the operator QR generator page.
type OperatorQRData struct {
	ChargePointID string
	ConnectorID   string
	TenantID      string
	Link          string
	ImageURL      string
	// PNGBase64 embeds the generated code when set.
	PNGBase64 string
	Error     string
}
