package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"guestcharge/config"
	"guestcharge/services"
	"guestcharge/templates"
	"guestcharge/utils"
)

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Config    *config.AppConfig
	Initiator services.AuthorizationInitiator
	Invoices  services.InvoiceFetcher
	Provider  services.PaymentProvider
	Cache     services.AuthorizationCache
	Ledger    services.Ledger
	Views     *services.ViewRegistry
	Forms     *services.PaymentFormRegistry
	// Operator is nil when the operator pages are disabled.
	Operator *services.OperatorAuth

	Now   func() time.Time
	NewID func() string
}

// Handlers serves the guest pages, the live session endpoints and the operator pages.
type Handlers struct {
	deps Deps
}

// New fills defaults for the optional dependencies.
func New(deps Deps) *Handlers {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Ledger == nil {
		deps.Ledger = services.NopLedger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Handlers{deps: deps}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component, scripts ...string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Layout(title, body, scripts...).Render(r.Context(), w); err != nil {
		utils.Error("http", "Error rendering page", "path", r.URL.Path, "error", err)
	}
}

func renderFragment(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		utils.Error("http", "Error rendering fragment", "path", r.URL.Path, "error", err)
	}
}

// trigger sets an HX-Trigger event carrying a message, e.g. showToast or showAlert.
func trigger(w http.ResponseWriter, event, message string) {
	payload, err := json.Marshal(map[string]map[string]string{event: {"message": message}})
	if err != nil {
		utils.Error("http", "Error encoding HX-Trigger", "event", event, "error", err)
		return
	}
	w.Header().Set("HX-Trigger", string(payload))
}

func notify(w http.ResponseWriter, status int, event, message string) {
	trigger(w, event, message)
	w.WriteHeader(status)
}

// statusFor maps the error taxonomy to a response status.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindInput:
		return http.StatusBadRequest
	case services.KindDecline:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

// renderError shows the full-page error. Input errors have no retry: reloading
// the same link cannot fix them.
func renderError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	data := templates.ErrorPageData{
		Message: services.UserMessage(err, fallback),
		Retry:   services.KindOf(err) != services.KindInput,
	}
	renderPage(w, r, statusFor(err), "Error", templates.ErrorPage(data))
}

// publicURL is the configured external base URL, or the one the request came in on.
func (h *Handlers) publicURL(r *http.Request) string {
	if base := strings.TrimRight(h.deps.Config.HTTP.PublicURL, "/"); base != "" {
		return base
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
