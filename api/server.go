package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"billpay/web/handlers"
	"billpay/web/metrics"
	"billpay/web/middleware"
	"billpay/web/session"
)

// DefaultRestoreSettle is how long a first request waits for a browser's
// persisted session to be resumed before the wait page is shown.
const DefaultRestoreSettle = 250 * time.Millisecond

// Options wires a Server.
type Options struct {
	Handlers *handlers.Handlers
	Cookies  sessions.Store
	Registry *session.Registry[*handlers.Views]
	Metrics  *metrics.Metrics
	// RestoreSettle of zero uses DefaultRestoreSettle; negative disables
	// waiting.
	RestoreSettle time.Duration
}

// Server routes every request of the site.
type Server struct {
	router *mux.Router
	opts   Options
}

// NewServer creates a new server with all routes registered
func NewServer(opts Options) *Server {
	if opts.RestoreSettle == 0 {
		opts.RestoreSettle = DefaultRestoreSettle
	}
	if opts.RestoreSettle < 0 {
		opts.RestoreSettle = 0
	}
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.RegisterRoutes()
	return s
}

// RegisterRoutes registers all routes
func (s *Server) RegisterRoutes() {
	h := s.opts.Handlers
	loadSession := middleware.LoadSession(s.opts.Cookies, s.opts.Registry, s.opts.RestoreSettle)

	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(middleware.RequestLogger(s.opts.Metrics))

	// Public routes without a browser session
	s.router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods("GET")
	s.router.PathPrefix("/static/").Handler(handlers.StaticHandler()).Methods("GET")

	// Pages share the browser session
	pages := s.router.NewRoute().Subrouter()
	pages.Use(loadSession)

	pages.HandleFunc("/", h.Home).Methods("GET")
	pages.HandleFunc("/bills", h.Bills).Methods("GET")
	pages.HandleFunc("/login", h.LoginPage).Methods("GET")
	pages.HandleFunc("/login", h.Login).Methods("POST")
	pages.HandleFunc("/login/federated", h.FederatedLogin).Methods("POST")
	pages.HandleFunc("/password-reset", h.PasswordReset).Methods("POST")
	pages.HandleFunc("/register", h.RegisterPage).Methods("GET")
	pages.HandleFunc("/register", h.Register).Methods("POST")
	pages.HandleFunc("/logout", h.Logout).Methods("POST")
	pages.HandleFunc("/theme", h.ToggleTheme).Methods("POST")

	// Guarded pages wait for the session and send strangers to the login
	protected := pages.NewRoute().Subrouter()
	protected.Use(middleware.RequireSession(http.HandlerFunc(h.Wait)))

	protected.HandleFunc("/bills/{id}", h.BillDetail).Methods("GET")
	protected.HandleFunc("/bills/{id}/pay", h.OpenPayment).Methods("GET")
	protected.HandleFunc("/bills/{id}/pay", h.SubmitPayment).Methods("POST")
	protected.HandleFunc("/mypaybills", h.MyPayBills).Methods("GET")
	protected.HandleFunc("/mypaybills/delete/cancel", h.CancelDelete).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/edit", h.EditPayment).Methods("GET")
	protected.HandleFunc("/mypaybills/{id}/edit", h.UpdatePayment).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/delete", h.ConfirmDeletePayment).Methods("GET")
	protected.HandleFunc("/mypaybills/{id}/delete", h.DeletePayment).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/receipt", h.Receipt).Methods("GET")

	s.router.NotFoundHandler = middleware.SecurityHeaders(loadSession(http.HandlerFunc(h.NotFound)))
}

// Handler returns the HTTP handler for the server, traced per request.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "billpay")
}
