package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"billpay/web/middleware"
)

const (
	themeCookie = "theme"
	themeLight  = "light"
	themeDark   = "dark"
)

// themeOf returns the theme stored in the browser; light unless it says dark.
func themeOf(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == themeDark {
		return themeDark
	}
	return themeLight
}

// ToggleTheme flips between light and dark and returns to the page the
// toggle was pressed on.
func (h *Handlers) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	next := themeDark
	if themeOf(r) == themeDark {
		next = themeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, middleware.SafeNext(r.FormValue("next")), http.StatusSeeOther)
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Wait is shown on guarded pages while the session is still being
// determined. It reloads itself and never redirects elsewhere.
func (h *Handlers) Wait(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageWait, page{
		Title:   "Loading",
		Refresh: refreshAfter(time.Second, retryLocation(r)),
	})
}

// retryLocation is what the wait page reloads. Only GETs are repeated; for
// a form post the browser goes back to the page it was posted from.
func retryLocation(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
		if ref.Host == "" || ref.Host == r.Host {
			return middleware.SafeNext(ref.RequestURI())
		}
	}
	return "/"
}

type errorData struct {
	Heading string
	Message string
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	h.render(w, r, status, pageError, page{
		Title: heading,
		Data:  errorData{Heading: heading, Message: message},
	})
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Page Not Found",
		"The page you are looking for does not exist or has been moved.")
}
