package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guestcharge/config"
	"guestcharge/services"
)

// fakeBackend stands in for the charging backend.
type fakeBackend struct {
	mu sync.Mutex

	handle      services.AuthorizationHandle
	initiateErr error
	initiated   []services.Navigation

	session  *services.Session
	fetchErr error
	stopErr  error
	stops    int

	invoice    []byte
	invoiceErr error
	invoices   int
}

func (b *fakeBackend) Initiate(_ context.Context, nav services.Navigation) (services.AuthorizationHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initiated = append(b.initiated, nav)
	return b.handle, b.initiateErr
}

func (b *fakeBackend) FetchStatus(context.Context, string) (*services.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.fetchErr
}

func (b *fakeBackend) StopSession(context.Context, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return b.stopErr
}

func (b *fakeBackend) FetchInvoice(context.Context, string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invoices++
	return b.invoice, b.invoiceErr
}

func (b *fakeBackend) Stops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

type fakeProvider struct {
	mu         sync.Mutex
	confirm    *services.Authorization
	confirmErr error
	retrieve   *services.Authorization
	returnURLs []string
}

func (p *fakeProvider) ConfirmAuthorization(_ context.Context, _, _, returnURL string) (*services.Authorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.returnURLs = append(p.returnURLs, returnURL)
	if p.confirmErr != nil {
		return nil, p.confirmErr
	}
	auth := *p.confirm
	return &auth, nil
}

func (p *fakeProvider) RetrieveAuthorization(context.Context, string) (*services.Authorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	auth := *p.retrieve
	return &auth, nil
}

type testEnv struct {
	cfg      *config.AppConfig
	backend  *fakeBackend
	provider *fakeProvider
	cache    *services.MemoryAuthorizationCache
	views    *services.ViewRegistry
	forms    *services.PaymentFormRegistry
	operator *services.OperatorAuth
	handler  http.Handler

	mu     sync.Mutex
	nextID int
}

func newTestEnv(t *testing.T, configure func(*config.AppConfig)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.PublicURL = "https://charge.example.com"
	cfg.Stripe.PublicKey = "pk_test_123"
	cfg.Stripe.WebhookSecret = "whsec_test"
	if configure != nil {
		configure(cfg)
	}

	env := &testEnv{
		cfg:      cfg,
		backend:  &fakeBackend{},
		provider: &fakeProvider{},
		cache:    services.NewMemoryAuthorizationCache(time.Minute, nil),
	}
	env.views = services.NewViewRegistry(services.ViewDeps{
		Fetcher:      env.backend,
		Stopper:      env.backend,
		PollInterval: time.Hour,
	})
	env.forms = services.NewPaymentFormRegistry(time.Hour, nil)
	if cfg.OperatorEnabled() {
		env.operator = services.NewOperatorAuth(cfg.Operator.PasswordHash, cfg.Operator.JWTSecret, time.Hour)
	}
	t.Cleanup(env.views.CloseAll)

	h := New(Deps{
		Config:    cfg,
		Initiator: env.backend,
		Invoices:  env.backend,
		Provider:  env.provider,
		Cache:     env.cache,
		Views:     env.views,
		Forms:     env.forms,
		Operator:  env.operator,
		NewID:     env.newID,
	})
	env.handler = h.Router()
	return env
}

func (e *testEnv) newID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	return fmt.Sprintf("id-%d", e.nextID)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return e.do(req)
}

func (e *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return e.do(req)
}

func requireTrigger(t *testing.T, rec *httptest.ResponseRecorder, event, message string) {
	t.Helper()
	header := rec.Header().Get("HX-Trigger")
	require.NotEmpty(t, header)
	require.JSONEq(t, fmt.Sprintf(`{%q:{"message":%q}}`, event, message), header)
}
