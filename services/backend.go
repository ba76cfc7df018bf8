package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guestcharge/config"
	"guestcharge/metrics"
	"guestcharge/utils"
)

// Backend paths.
const (
	PathAddCardLink         = "/guest-charging/generate-add-card-link"
	PathCreatePaymentIntent = "/guest-charging/create-payment-intent"
	PathSessionStatus       = "/guest-charging/chargeSessionStatus"
	PathStopCharging        = "/guest-charging/stop-charging"
	PathInvoice             = "/guest-charging/invoice"
)

// StatusFetcher reads the current session snapshot.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, token string) (*Session, error)
}

// SessionStopper asks the backend to stop the session.
type SessionStopper interface {
	StopSession(ctx context.Context, token string) error
}

// InvoiceFetcher downloads the rendered invoice document.
type InvoiceFetcher interface {
	FetchInvoice(ctx context.Context, token string) ([]byte, error)
}

// AuthorizationHandle is what the backend hands out to start a payment: either a
// client secret for the embedded form or a URL of a hosted page.
type AuthorizationHandle struct {
	ClientSecret string
	RedirectURL  string
}

// AuthorizationInitiator requests an authorization handle for a charge point connector.
type AuthorizationInitiator interface {
	Initiate(ctx context.Context, nav Navigation) (AuthorizationHandle, error)
}

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Response is the buffered result of a backend call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// BaseClient provides simple request helpers against one base URL.
type BaseClient struct {
	baseURL string
	client  HTTPDoer
}

// NewBaseClient builds client with base URL.
func NewBaseClient(baseURL string, client HTTPDoer) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *BaseClient) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do executes one HTTP request and buffers the response body.
func (c *BaseClient) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// BackendClient talks to the charging backend. Every call is a single attempt.
type BackendClient struct {
	base        *BaseClient
	paymentMode string
}

// NewBackendClient returns client. paymentMode picks which authorization handle Initiate asks for.
func NewBackendClient(baseURL string, httpClient HTTPDoer, paymentMode string) *BackendClient {
	return &BackendClient{base: NewBaseClient(baseURL, httpClient), paymentMode: paymentMode}
}

func bearer(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}
}

func observe(operation string, err error) {
	metrics.BackendCalls.WithLabelValues(operation, metrics.Outcome(err)).Inc()
}

// FetchStatus reads the current session snapshot.
func (c *BackendClient) FetchStatus(ctx context.Context, token string) (session *Session, err error) {
	defer func() { observe("status", err) }()

	resp, err := c.base.Do(ctx, http.MethodGet, PathSessionStatus, nil, bearer(token))
	if err != nil {
		return nil, newError(KindTransport, "Failed to load session status", err)
	}
	if !resp.OK() {
		return nil, newError(KindTransport, "Failed to fetch charging session status", fmt.Errorf("status %d", resp.StatusCode))
	}

	var s Session
	if err := json.Unmarshal(resp.Body, &s); err != nil {
		return nil, newError(KindTransport, "Failed to load session status", err)
	}
	return &s, nil
}

// StopSession asks the backend to stop charging. The acknowledgement body is not inspected.
func (c *BackendClient) StopSession(ctx context.Context, token string) (err error) {
	defer func() { observe("stop", err) }()

	resp, err := c.base.Do(ctx, http.MethodPost, PathStopCharging, nil, bearer(token))
	if err != nil {
		return newError(KindTransport, "Failed to stop charging session. Please try again.", err)
	}
	if !resp.OK() {
		msg := "Failed to stop charging session"
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Body, &body) == nil && strings.TrimSpace(body.Message) != "" {
			msg = body.Message
		}
		return newError(KindBusiness, msg, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// FetchInvoice downloads the invoice document verbatim.
func (c *BackendClient) FetchInvoice(ctx context.Context, token string) (doc []byte, err error) {
	defer func() { observe("invoice", err) }()

	headers := map[string]string{"Authorization": "Bearer " + token}
	resp, err := c.base.Do(ctx, http.MethodGet, PathInvoice, nil, headers)
	if err != nil {
		return nil, newError(KindTransport, "Failed to download invoice. Please try again.", err)
	}
	if !resp.OK() {
		return nil, newError(KindTransport, "Failed to download invoice. Please try again.", fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// Initiate requests an authorization handle. In elements mode the backend creates a
// payment intent and returns its client secret; otherwise it returns a hosted page URL.
func (c *BackendClient) Initiate(ctx context.Context, nav Navigation) (handle AuthorizationHandle, err error) {
	defer func() { observe("authorize", err) }()

	if c.paymentMode == config.PaymentModeElements {
		secret, err := c.createPaymentIntent(ctx, nav)
		if err != nil {
			return AuthorizationHandle{}, err
		}
		return AuthorizationHandle{ClientSecret: secret}, nil
	}

	link, err := c.addCardLink(ctx, nav)
	if err != nil {
		return AuthorizationHandle{}, err
	}
	return AuthorizationHandle{RedirectURL: link}, nil
}

func (c *BackendClient) addCardLink(ctx context.Context, nav Navigation) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"chargePointId": nav.ChargePointID,
		"connectorId":   nav.ConnectorID,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.base.Do(ctx, http.MethodPost, PathAddCardLink, payload, nil)
	if err != nil {
		return "", newError(KindTransport, "Failed to initialize payment", err)
	}
	if !resp.OK() {
		return "", newError(KindTransport, "Failed to get payment link", fmt.Errorf("status %d", resp.StatusCode))
	}

	link := strings.TrimSpace(string(resp.Body))
	if resp.IsJSON() {
		var body struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return "", newError(KindTransport, "Failed to initialize payment", err)
		}
		link = strings.TrimSpace(body.URL)
	}
	if !strings.HasPrefix(link, "http") {
		return "", newError(KindBusiness, "Invalid URL received from server", errors.New("payment link is not absolute"))
	}

	utils.Debug("backend", "Received payment link", "charge_point_id", nav.ChargePointID, "connector_id", nav.ConnectorID)
	return link, nil
}

func (c *BackendClient) createPaymentIntent(ctx context.Context, nav Navigation) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"chargePointId": nav.ChargePointID,
		"connectorId":   nav.ConnectorID,
		"tenantId":      nav.TenantID,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.base.Do(ctx, http.MethodPost, PathCreatePaymentIntent, payload, nil)
	if err != nil {
		return "", newError(KindTransport, "Failed to initialize payment", err)
	}
	if !resp.OK() {
		return "", newError(KindTransport, "Failed to initialize payment", fmt.Errorf("status %d", resp.StatusCode))
	}

	secret := strings.TrimSpace(string(resp.Body))
	if resp.IsJSON() {
		var body struct {
			ClientSecret      string `json:"clientSecret"`
			ClientSecretSnake string `json:"client_secret"`
		}
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return "", newError(KindTransport, "Failed to initialize payment", err)
		}
		secret = body.ClientSecret
		if secret == "" {
			secret = body.ClientSecretSnake
		}
	}
	if IntentIDFromClientSecret(secret) == "" {
		return "", newError(KindBusiness, "Invalid payment details received from server", errors.New("client secret is malformed"))
	}
	return secret, nil
}
