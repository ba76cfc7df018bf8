package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"guestcharge/services"
	"guestcharge/templates"
	"guestcharge/utils"
)

// SessionPage renders the live session shell for the token in the link. Each page
// load gets its own view id; the view starts polling once the stream connects.
func (h *Handlers) SessionPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := r.URL.Query().Get(services.ParamToken)
	if err := services.InspectSessionToken(token, h.deps.Now()); err != nil {
		utils.Warn("session", "Rejected session link", "charge_point_id", vars["chargePoint"], "error", err)
		renderError(w, r, err, "Invalid session link")
		return
	}

	transport := templates.TransportSSE
	if r.URL.Query().Get("transport") == templates.TransportWS {
		transport = templates.TransportWS
	}

	data := templates.SessionPageData{
		ViewID:        h.deps.NewID(),
		Token:         token,
		ChargePointID: vars["chargePoint"],
		ConnectorID:   vars["connector"],
		Transport:     transport,
		State:         services.ViewState{Phase: services.PhaseLoading},
	}
	renderPage(w, r, http.StatusOK, "Charging Session", templates.SessionPage(data))
}

// StopSession runs the stop sequence of the page's view and answers with the
// summary. Views whose stream is gone are served by a transient view.
func (h *Handlers) StopSession(w http.ResponseWriter, r *http.Request) {
	viewID := mux.Vars(r)["view"]
	token := r.URL.Query().Get(services.ParamToken)
	if token == "" {
		notify(w, http.StatusBadRequest, "showAlert", "No token provided")
		return
	}

	view, ok := h.deps.Views.Get(viewID)
	if ok && view.Token() != token {
		notify(w, http.StatusForbidden, "showAlert", "This session belongs to another link")
		return
	}
	if !ok {
		view = h.deps.Views.Transient(viewID, token)
		defer view.Close()
	}

	err := view.Stop(r.Context())
	if errors.Is(err, services.ErrViewClosed) {
		view = h.deps.Views.Transient(viewID, token)
		defer view.Close()
		err = view.Stop(r.Context())
	}

	switch {
	case err == nil:
		_, _, actions := templates.SessionPaths(viewID, token)
		renderFragment(w, r, http.StatusOK, templates.SessionContent(view.Snapshot(), actions))
	case errors.Is(err, services.ErrStopInProgress):
		notify(w, http.StatusConflict, "showToast", "Stopping is already in progress")
	case errors.Is(err, services.ErrAlreadyStopped):
		notify(w, http.StatusConflict, "showToast", "Charging session is already stopped")
	default:
		utils.Error("session", "Error stopping charging", "view_id", viewID, "error", err)
		notify(w, http.StatusBadGateway, "showAlert", services.UserMessage(err, "Failed to stop charging session. Please try again."))
	}
}

// DownloadInvoice fetches the invoice fresh on every request and serves it as an
// attachment. It is refused while the page's session is known to be running.
func (h *Handlers) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	viewID := mux.Vars(r)["view"]
	token := r.URL.Query().Get(services.ParamToken)
	if token == "" {
		notify(w, http.StatusBadRequest, "showToast", "No token provided")
		return
	}

	var session *services.Session
	if view, ok := h.deps.Views.Get(viewID); ok {
		if view.Token() != token {
			notify(w, http.StatusForbidden, "showToast", "This session belongs to another link")
			return
		}
		session = view.Snapshot().Session
		if session != nil && !session.IsCompleted() {
			notify(w, http.StatusConflict, "showToast", "The invoice is available once the session is completed")
			return
		}
	}

	doc, err := h.deps.Invoices.FetchInvoice(r.Context(), token)
	if err != nil {
		utils.Error("session", "Error downloading invoice", "view_id", viewID, "error", err)
		notify(w, http.StatusBadGateway, "showToast", services.UserMessage(err, "Failed to download invoice. Please try again."))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": session.InvoiceFilename()}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		utils.Error("session", "Error writing invoice", "view_id", viewID, "error", err)
	}
}
