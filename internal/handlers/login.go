package handlers

import (
	"net/http"
	"strings"

	applog "bizview/internal/log"
	"bizview/internal/views/pages"
)

const (
	loginMissingFields = "Enter the email and password of your BizView account."
	loginFailed        = "We could not open your BizView account. Please try again."
)

// Login shows the sign-in form and opens a session for the business owner.
// Signed-in visitors go straight to the dashboard.
func Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if ActiveSession(r) {
			redirectToApp(w, r)
			return
		}
		var flash string
		if sessionManager != nil {
			flash = sessionManager.PopString(ctx, sessionLoginMessageKey)
		}
		renderLogin(w, r, flash, "")
	case http.MethodPost:
		if sessionManager == nil || database == nil {
			applog.Warn(ctx, "sign-in attempted without session store or database")
			http.Error(w, "authentication not available", http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form submission", http.StatusBadRequest)
			return
		}
		email := strings.ToLower(strings.TrimSpace(r.PostFormValue("email")))
		password := r.PostFormValue("password")
		if email == "" || password == "" {
			renderLogin(w, r, loginMissingFields, email)
			return
		}

		if !authenticate(w, r, email, password) {
			applog.Debug(ctx, "sign-in rejected", "email", email)
			message := sessionManager.PopString(ctx, sessionLoginMessageKey)
			if message == "" {
				message = loginFailed
			}
			renderLogin(w, r, message, email)
			return
		}

		applog.Info(ctx, "owner signed in",
			"account", sessionManager.GetInt(ctx, sessionUserIDKey),
			"business", sessionManager.GetString(ctx, sessionBusinessNameKey))
		redirectToApp(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func renderLogin(w http.ResponseWriter, r *http.Request, message, email string) {
	renderView(w, r, "login", pages.Login(message, email), pages.LoginPartial(message, email))
}
