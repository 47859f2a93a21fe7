package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"

	"billpay/web/api"
	"billpay/web/backend"
	"billpay/web/catalog"
	"billpay/web/config"
	"billpay/web/database"
	"billpay/web/handlers"
	"billpay/web/identity"
	"billpay/web/logger"
	"billpay/web/metrics"
	"billpay/web/payments"
	"billpay/web/security"
	"billpay/web/services"
	"billpay/web/session"
	"billpay/web/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON || cfg.IsProduction() {
		logger.SetJSON()
	}
	for _, w := range cfg.Warnings {
		logger.Log.Warn().Msg(w)
	}
	logger.Log.Info().Str("env", cfg.Env).Str("backend", cfg.BackendURL).Str("identity", cfg.IdentityProvider).Msg("Starting BillPay")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{ServiceName: "billpay", Exporter: cfg.TraceExporter})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer db.Close()

	cipher, err := security.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize encryption")
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize identity provider")
	}

	m := metrics.New()
	client := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Metrics: m,
	})
	paymentService := payments.NewService(client, payments.Generator{}, m)

	registry := session.NewRegistry(session.RegistryConfig{
		Provider:   provider,
		Repository: session.NewRepository(db),
		Cipher:     cipher,
		Metrics:    m,
		MaxEntries: cfg.SessionMaxEntries,
	}, handlers.NewViews(paymentService))

	h, err := handlers.New(handlers.Config{
		Catalog:        catalog.NewService(client),
		RedirectDelay:  cfg.PaymentRedirectDelay,
		GoogleClientID: cfg.GoogleClientID,
		SecureCookies:  cfg.SecureCookies,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load page templates")
	}

	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	server := api.NewServer(api.Options{
		Handlers: h,
		Cookies:  cookies,
		Registry: registry,
		Metrics:  m,
	})

	sweeperDone := services.StartScheduler(ctx, registry, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)

	srv := &http.Server{
		Handler:           server.Handler(),
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server shutdown")
	}
	<-sweeperDone
	registry.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Tracing shutdown")
	}
}

func newProvider(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	if cfg.IdentityProvider == config.ProviderMemory {
		return identity.NewMemory(cfg.SessionLifetime), nil
	}
	return identity.NewFirebase(ctx, identity.FirebaseConfig{
		ProjectID:       cfg.FirebaseProjectID,
		APIKey:          cfg.FirebaseAPIKey,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		SessionTTL:      cfg.SessionLifetime,
	})
}
