package middleware

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"billpay/web/logger"
	"billpay/web/session"
)

type contextKey string

const (
	// CookieSessionKey holds the *sessions.Session of the request.
	CookieSessionKey contextKey = "cookie_session"
	// StoreKey holds the browser's *session.Store.
	StoreKey contextKey = "session_store"
	// EntryKey holds the browser's *session.Entry.
	EntryKey contextKey = "session_entry"
)

const (
	// CookieName is the signed cookie that carries the browser-session id
	// and flash messages.
	CookieName   = "billpay"
	browserIDKey = "sid"
)

// LoadSession attaches the browser's cookie session and session-store entry
// to the request context, issuing a browser-session id on first visit. A
// first-visit read is served from the registry's guest entry, so clients
// that never return the cookie hold no per-browser state. A freshly created
// entry is given up to settle to finish restoring before the request
// proceeds.
func LoadSession[V io.Closer](cookies sessions.Store, registry *session.Registry[V], settle time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, err := cookies.Get(r, CookieName)
			if err != nil {
				// a tampered or stale cookie still yields a fresh session
				logger.Log.Debug().Err(err).Msg("discarding unreadable session cookie")
			}

			var entry *session.Entry[V]
			if id, _ := cs.Values[browserIDKey].(string); id != "" {
				entry = registry.Lookup(id)
			} else {
				id = uuid.NewString()
				cs.Values[browserIDKey] = id
				if err := cs.Save(r, w); err != nil {
					logger.Log.Error().Err(err).Msg("saving session cookie")
				}
				// Until the cookie comes back, reads share the signed-out
				// guest entry. Only a browser that acts gets its own.
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					entry = registry.Guest()
				} else {
					entry = registry.Lookup(id)
				}
			}

			if settle > 0 {
				select {
				case <-entry.Ready():
				case <-time.After(settle):
				case <-r.Context().Done():
				}
			}

			ctx := context.WithValue(r.Context(), CookieSessionKey, cs)
			ctx = context.WithValue(ctx, StoreKey, entry.Store)
			ctx = context.WithValue(ctx, EntryKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCookieSession retrieves the cookie session from the request context.
func GetCookieSession(r *http.Request) *sessions.Session {
	cs, _ := r.Context().Value(CookieSessionKey).(*sessions.Session)
	return cs
}

// GetStore retrieves the browser's session store from the request context.
func GetStore(r *http.Request) *session.Store {
	s, _ := r.Context().Value(StoreKey).(*session.Store)
	return s
}

// GetEntry retrieves the browser's registry entry from the request context.
func GetEntry[V io.Closer](r *http.Request) *session.Entry[V] {
	e, _ := r.Context().Value(EntryKey).(*session.Entry[V])
	return e
}

// BrowserID returns the browser-session id of the request, or "".
func BrowserID(r *http.Request) string {
	cs := GetCookieSession(r)
	if cs == nil {
		return ""
	}
	id, _ := cs.Values[browserIDKey].(string)
	return id
}
