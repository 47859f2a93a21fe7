package middleware

import (
	"net/http"
)

// contentSecurityPolicy allows bill and avatar images from anywhere over
// https and the Google sign-in button.
const contentSecurityPolicy = "default-src 'self'; " +
	"img-src 'self' https: data:; " +
	"script-src 'self' https://accounts.google.com/gsi/client; " +
	"frame-src https://accounts.google.com/gsi/; " +
	"connect-src 'self' https://accounts.google.com/gsi/; " +
	"style-src 'self' https://accounts.google.com/gsi/style; " +
	"base-uri 'none'; frame-ancestors 'none'; form-action 'self'"

// SecurityHeaders sets the response headers every page carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}
