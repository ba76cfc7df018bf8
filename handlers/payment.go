package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"guestcharge/config"
	"guestcharge/services"
	"guestcharge/templates"
	"guestcharge/utils"
)

// paramForm carries the payment form id through the provider's return URL.
const paramForm = "form"

// Landing serves the explainer page.
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, "Guest Charging", templates.LandingPage())
}

// ChargePoint is the entry page a guest reaches by scanning the charger's QR code.
func (h *Handlers) ChargePoint(w http.ResponseWriter, r *http.Request) {
	chargePointID := mux.Vars(r)["chargePoint"]
	q := r.URL.Query()

	if q.Get(services.ParamPaymentSuccess) == "true" {
		renderPage(w, r, http.StatusOK, "Payment Authorized", templates.AuthorizedPage(chargePointID, q.Get(services.ParamConnectorID)))
		return
	}

	elements := h.deps.Config.Payment.Mode == config.PaymentModeElements
	nav, err := services.ParseNavigation(chargePointID, q, elements)
	if err != nil {
		utils.Warn("payment", "Rejected charge point link", "charge_point_id", chargePointID, "error", err)
		renderError(w, r, err, "Invalid link")
		return
	}

	if !elements {
		h.hostedPayment(w, r, nav)
		return
	}
	if secret := q.Get(services.ParamIntentClientSecret); secret != "" {
		h.returnFromChallenge(w, r, nav, secret)
		return
	}
	h.newPaymentForm(w, r, nav)
}

// hostedPayment renders a loading page that calls back with HX-Request; the
// callback obtains the hosted page URL and redirects the browser there.
func (h *Handlers) hostedPayment(w http.ResponseWriter, r *http.Request, nav services.Navigation) {
	if !isHTMX(r) {
		renderPage(w, r, http.StatusOK, "Payment", templates.LoadingPage(r.URL.RequestURI()))
		return
	}

	handle, err := h.deps.Initiator.Initiate(r.Context(), nav)
	if err != nil {
		utils.Error("payment", "Payment initialization error", "charge_point_id", nav.ChargePointID, "connector_id", nav.ConnectorID, "error", err)
		// 200 so htmx swaps the error in place of the loading card.
		renderFragment(w, r, http.StatusOK, templates.ErrorPage(templates.ErrorPageData{
			Message: services.UserMessage(err, "Failed to initialize payment"),
			Retry:   true,
		}))
		return
	}

	utils.Info("payment", "Redirecting to hosted payment page", "charge_point_id", nav.ChargePointID, "connector_id", nav.ConnectorID)
	w.Header().Set("HX-Redirect", handle.RedirectURL)
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) newPaymentForm(w http.ResponseWriter, r *http.Request, nav services.Navigation) {
	handle, err := h.deps.Initiator.Initiate(r.Context(), nav)
	if err != nil {
		utils.Error("payment", "Payment initialization error", "charge_point_id", nav.ChargePointID, "connector_id", nav.ConnectorID, "error", err)
		renderError(w, r, err, "Failed to initialize payment")
		return
	}

	form := services.NewPaymentForm(h.deps.NewID(), nav, handle.ClientSecret, carriedQuery(r.URL.Query()), h.deps.Provider, h.deps.Ledger)
	h.deps.Forms.Add(form)
	utils.Debug("payment", "Payment form created", "form_id", form.ID, "charge_point_id", nav.ChargePointID)
	h.renderPaymentForm(w, r, form, form.Snapshot())
}

// returnFromChallenge handles the provider redirecting back after an external
// authentication step. The form is looked up by id; if it expired, a new one is
// bound to the returned client secret.
func (h *Handlers) returnFromChallenge(w http.ResponseWriter, r *http.Request, nav services.Navigation, secret string) {
	form, ok := h.deps.Forms.Get(r.URL.Query().Get(paramForm))
	if !ok || form.ClientSecret() != secret {
		form = services.NewPaymentForm(h.deps.NewID(), nav, secret, carriedQuery(r.URL.Query()), h.deps.Provider, h.deps.Ledger)
		h.deps.Forms.Add(form)
	}

	result := form.VerifyReturn(r.Context(), secret)
	if result.State == services.FormAuthorized && result.RedirectURL != "" {
		http.Redirect(w, r, result.RedirectURL, http.StatusSeeOther)
		return
	}
	h.renderPaymentForm(w, r, form, result)
}

func (h *Handlers) renderPaymentForm(w http.ResponseWriter, r *http.Request, form *services.PaymentForm, result services.FormResult) {
	data := templates.PaymentFormData{
		FormID:          form.ID,
		ChargePointID:   form.Nav.ChargePointID,
		ConnectorID:     form.Nav.ConnectorID,
		StripePublicKey: h.deps.Config.Stripe.PublicKey,
		ClientSecret:    form.ClientSecret(),
		SubmitURL:       "/payments/" + url.PathEscape(form.ID) + "/submit",
		Result:          result,
	}
	renderPage(w, r, http.StatusOK, "Payment", templates.PaymentFormPage(data), templates.StripeScript)
}

// SubmitPayment confirms the form's authorization with the tokenized card.
func (h *Handlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["form"]
	form, ok := h.deps.Forms.Get(id)
	if !ok {
		notify(w, http.StatusNotFound, "showToast", "This payment form has expired. Please reload the page.")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	returnURL := h.publicURL(r) + form.Nav.EntryURL() + "&" + paramForm + "=" + url.QueryEscape(form.ID)
	result, err := form.Submit(r.Context(), r.FormValue("payment_method"), returnURL)
	switch {
	case errors.Is(err, services.ErrAlreadyAuthorized):
		notify(w, http.StatusConflict, "showToast", "Payment is already authorized")
		return
	case errors.Is(err, services.ErrSubmissionInFlight):
		notify(w, http.StatusConflict, "showToast", "Payment is already being processed")
		return
	case errors.Is(err, services.ErrNoHandle):
		notify(w, http.StatusConflict, "showToast", "Payment is not ready yet. Please reload the page.")
		return
	}

	switch {
	case result.State == services.FormAuthorized && result.RedirectURL != "":
		w.Header().Set("HX-Redirect", result.RedirectURL)
		w.WriteHeader(http.StatusOK)
	case result.ChallengeURL != "":
		utils.Info("payment", "Redirecting to authentication challenge", "form_id", form.ID)
		w.Header().Set("HX-Redirect", result.ChallengeURL)
		w.WriteHeader(http.StatusOK)
	default:
		// Declines render in place so the guest can try another card.
		renderFragment(w, r, http.StatusOK, templates.FormStatus(result))
	}
}

// PaymentFailure is where the hosted payment page sends the guest on failure.
func (h *Handlers) PaymentFailure(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chargePointID, connectorID := vars["chargePoint"], vars["connector"]
	renderPage(w, r, http.StatusOK, "Payment Unsuccessful",
		templates.FailurePage(chargePointID, connectorID, services.RetryURL(chargePointID, connectorID)))
}

// carriedQuery is the query a form carries into its success redirect.
func carriedQuery(q url.Values) url.Values {
	extra := url.Values{}
	for k, v := range q {
		if k == paramForm {
			continue
		}
		extra[k] = v
	}
	return extra
}
