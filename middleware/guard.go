package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"billpay/web/session"
)

// LoginPath is where denied requests are sent.
const LoginPath = "/login"

// GuardState is the outcome of evaluating the route guard.
type GuardState int

const (
	Checking GuardState = iota
	Authorized
	Denied
)

func (s GuardState) String() string {
	switch s {
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	default:
		return "denied"
	}
}

// Evaluate maps a session snapshot to a guard state. It keeps no state of
// its own.
func Evaluate(snap session.Snapshot) GuardState {
	switch {
	case snap.Loading:
		return Checking
	case snap.Identity != nil:
		return Authorized
	default:
		return Denied
	}
}

// RequireSession guards the wrapped routes. While the session is still
// being determined wait renders instead and nothing redirects. Denied GET
// requests are redirected to the login page with the requested location in
// "next"; other methods go to the login page plainly.
func RequireSession(wait http.Handler) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := GetStore(r)
			snap := session.Snapshot{}
			if store != nil {
				snap = store.Snapshot()
			}

			switch Evaluate(snap) {
			case Authorized:
				next.ServeHTTP(w, r)
			case Checking:
				w.Header().Set("Cache-Control", "no-store")
				wait.ServeHTTP(w, r)
			default:
				http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
			}
		})
	}
}

// LoginURL is the login location for a denied request.
func LoginURL(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// SafeNext returns next if it is a local path, else "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
