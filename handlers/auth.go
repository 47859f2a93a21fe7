package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"billpay/web/identity"
	"billpay/web/logger"
	"billpay/web/middleware"
	"billpay/web/session"
)

// Google Identity Services posts its credential with a double-submit
// CSRF token in both a cookie and a form field.
const (
	gsiCredentialField = "credential"
	gsiCSRFField       = "g_csrf_token"
)

type authData struct {
	Next         string
	Name         string
	Email        string
	PhotoURL     string
	Error        string
	FederatedURI string
}

func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, data authData, notices ...notice) {
	data.FederatedURI = federatedURI(r, data.Next)
	h.render(w, r, status, pageLogin, page{Title: "Login", Notices: notices, Data: data})
}

func (h *Handlers) renderRegister(w http.ResponseWriter, r *http.Request, status int, data authData) {
	data.FederatedURI = federatedURI(r, "/")
	h.render(w, r, status, pageRegister, page{Title: "Register", Data: data})
}

func signedIn(r *http.Request) bool {
	s := storeOf(r)
	return s != nil && s.Identity() != nil
}

// LoginPage shows the sign-in form. A signed-in browser goes straight on
// to next.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.URL.Query().Get("next"))
	if signedIn(r) {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, authData{Next: next})
}

// Login signs in with e-mail and password and returns to next.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.FormValue("next"))
	email := strings.TrimSpace(r.FormValue("email"))

	if err := storeOf(r).SignIn(r.Context(), email, r.FormValue("password")); err != nil {
		logger.Log.Info().Err(err).Str("code", identity.CodeOf(err)).Msg("password sign-in failed")
		h.renderLogin(w, r, http.StatusUnauthorized, authData{Next: next, Email: email, Error: signInMessage(err)})
		return
	}

	redirectWith(w, r, noticeSuccess, "Login Successful! Welcome.", next)
}

// FederatedLogin completes a Google sign-in whose credential the browser
// posted back.
func (h *Handlers) FederatedLogin(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.FormValue("next"))
	failed := middleware.LoginPath + "?next=" + url.QueryEscape(next)

	if !validCSRF(r) {
		logger.Log.Warn().Msg("federated sign-in rejected: CSRF token mismatch")
		redirectWith(w, r, noticeError, "Google Login Failed.", failed)
		return
	}
	credential := r.FormValue(gsiCredentialField)
	if credential == "" {
		redirectWith(w, r, noticeError, "Google Login Failed.", failed)
		return
	}

	err := storeOf(r).SignInWithFederatedProvider(r.Context(), identity.FederatedCredential{
		ProviderID: identity.GoogleProviderID,
		IDToken:    credential,
		RequestURI: requestURL(r),
	})
	if err != nil {
		logger.Log.Warn().Err(err).Str("code", identity.CodeOf(err)).Msg("federated sign-in failed")
		redirectWith(w, r, noticeError, "Google Login Failed.", failed)
		return
	}

	redirectWith(w, r, noticeSuccess, "Google Login Successful!", next)
}

// validCSRF checks the double-submit token when the cookie is present.
func validCSRF(r *http.Request) bool {
	c, err := r.Cookie(gsiCSRFField)
	if err != nil {
		return true
	}
	field := r.FormValue(gsiCSRFField)
	return field != "" && subtle.ConstantTimeCompare([]byte(c.Value), []byte(field)) == 1
}

// PasswordReset sends a reset e-mail to the address typed into the login
// form.
func (h *Handlers) PasswordReset(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.FormValue("next"))
	email := strings.TrimSpace(r.FormValue("email"))
	data := authData{Next: next, Email: email}

	if email == "" {
		data.Error = "Please enter your email in the field above to reset your password."
		h.renderLogin(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	if err := storeOf(r).RequestPasswordReset(r.Context(), email); err != nil {
		message := "Failed to send reset email. Please try again."
		if errors.Is(err, identity.ErrUserNotFound) || errors.Is(err, identity.ErrInvalidEmail) {
			message = "User not found for this email or email is invalid."
		} else {
			logger.Log.Error().Err(err).Msg("sending password reset")
		}
		h.renderLogin(w, r, http.StatusOK, data, notice{Kind: noticeError, Message: message})
		return
	}

	h.renderLogin(w, r, http.StatusOK, data, notice{
		Kind:    noticeSuccess,
		Message: fmt.Sprintf("Password reset link sent to %s. Check your inbox!", email),
	})
}

// RegisterPage shows the registration form.
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderRegister(w, r, http.StatusOK, authData{})
}

// Register checks the password rules locally, creates the account and sets
// its display name and photo.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	data := authData{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		PhotoURL: strings.TrimSpace(r.FormValue("photo")),
	}
	password := r.FormValue("password")

	if err := identity.ValidatePassword(password); err != nil {
		data.Error = sentence(err.Error())
		h.renderRegister(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	err := storeOf(r).Register(r.Context(), data.Email, password, data.Name, data.PhotoURL)
	var profileErr *session.ProfileError
	if errors.As(err, &profileErr) {
		logger.Log.Warn().Err(err).Str("code", identity.CodeOf(err)).Msg("registered without profile")
		flash(w, r, noticeInfo, "Your name and photo could not be saved. You can try again later.")
		redirectWith(w, r, noticeSuccess, "Registration Successful! Welcome.", "/")
		return
	}
	if err != nil {
		logger.Log.Info().Err(err).Str("code", identity.CodeOf(err)).Msg("registration failed")
		data.Error = registerMessage(err)
		h.renderRegister(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	redirectWith(w, r, noticeSuccess, "Registration Successful! Welcome.", "/")
}

// Logout signs out. The browser is signed out even when revoking the
// provider session fails.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := storeOf(r).SignOut(r.Context()); err != nil {
		logger.Log.Error().Err(err).Msg("signing out")
		redirectWith(w, r, noticeError, "Logout failed.", "/")
		return
	}
	redirectWith(w, r, noticeSuccess, "Successfully Logged out!", "/")
}

func signInMessage(err error) string {
	switch identity.CodeOf(err) {
	case identity.CodeInvalidCredential, identity.CodeUserNotFound:
		return "Invalid Email or Password. Please try again."
	case identity.CodeInvalidEmail:
		return "Please enter a valid email address."
	default:
		return "Login failed. Please try again."
	}
}

func registerMessage(err error) string {
	switch identity.CodeOf(err) {
	case identity.CodeEmailInUse:
		return "This email is already registered."
	case identity.CodeInvalidEmail:
		return "Please enter a valid email address."
	case identity.CodeWeakPassword:
		return "Password is too weak."
	default:
		return "Registration failed. Please try again."
	}
}

// sentence capitalizes msg and ends it with a full stop.
func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

// requestURL reconstructs the absolute URL the browser requested.
func requestURL(r *http.Request) string {
	return schemeOf(r) + "://" + r.Host + r.URL.RequestURI()
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return "https"
	}
	return "http"
}

// federatedURI is where Google Identity Services posts the credential.
func federatedURI(r *http.Request, next string) string {
	u := url.URL{
		Scheme:   schemeOf(r),
		Host:     r.Host,
		Path:     "/login/federated",
		RawQuery: url.Values{"next": {next}}.Encode(),
	}
	return u.String()
}
