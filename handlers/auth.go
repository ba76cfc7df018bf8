package handlers

import (
	"net/http"

	"guestcharge/templates"
	"guestcharge/utils"
)

const operatorCookie = "operator_session"

// RequireOperator guards the operator pages with the signed session cookie.
func (h *Handlers) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Operator == nil {
			http.NotFound(w, r)
			return
		}

		cookie, err := r.Cookie(operatorCookie)
		if err != nil || h.deps.Operator.Verify(cookie.Value) != nil {
			if isHTMX(r) {
				w.Header().Set("HX-Redirect", "/operator/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/operator/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OperatorLogin shows the login page and checks the password on POST.
func (h *Handlers) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	auth := h.deps.Operator
	if auth == nil {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}

		if !auth.CheckPassword(r.FormValue("password")) {
			utils.Warn("auth", "Operator login failed", "remote_addr", r.RemoteAddr)
			// 200 so htmx inserts the message into the form's target.
			renderFragment(w, r, http.StatusOK, templates.LoginError("Invalid password. Please try again."))
			return
		}

		token, expires, err := auth.Issue()
		if err != nil {
			utils.Error("auth", "Error issuing operator token", "error", err)
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     operatorCookie,
			Value:    token,
			Path:     "/operator",
			Expires:  expires,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		utils.Info("auth", "Operator logged in")
		w.Header().Set("HX-Redirect", "/operator/qr")
		w.WriteHeader(http.StatusOK)
		return
	}

	if cookie, err := r.Cookie(operatorCookie); err == nil && auth.Verify(cookie.Value) == nil {
		http.Redirect(w, r, "/operator/qr", http.StatusSeeOther)
		return
	}
	renderPage(w, r, http.StatusOK, "Operator Login", templates.OperatorLoginPage())
}

// OperatorLogout clears the session cookie.
func (h *Handlers) OperatorLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     operatorCookie,
		Value:    "",
		Path:     "/operator",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.Header().Set("HX-Redirect", "/operator/login")
	w.WriteHeader(http.StatusOK)
}
