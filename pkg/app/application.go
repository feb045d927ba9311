package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"slotify/pkg/config"
	"slotify/pkg/contracts"
	"slotify/pkg/middleware"
	otelx "slotify/pkg/otel"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      middleware.RateLimiter
	callerKey        middleware.KeyExtractor
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	hooks            []shutdownHook
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg, callerKey: middleware.ClientIP}
}

// WithCallerKey sets how requests are attributed to callers for rate limiting
// and idempotency scoping. Requests the extractor cannot attribute fall back
// to the client IP.
func (a *Application) WithCallerKey(extractor middleware.KeyExtractor) *Application {
	a.callerKey = func(r *http.Request) string {
		if key := extractor(r); key != "" {
			return key
		}
		return middleware.ClientIP(r)
	}
	return a
}

// OnShutdown registers fn to run after the HTTP server stopped, in
// registration order.
func (a *Application) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

// SetTracing installs the trace propagators and, when enabled, the OTLP
// exporter. The exporter is flushed on shutdown.
func (a *Application) SetTracing(serviceName string) {
	shutdown, err := otelx.Setup(context.Background(), otelx.Config{
		Enabled:      a.cfg.OtelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: a.cfg.OtelEndpoint,
		SampleRatio:  a.cfg.OtelSamplingRatio,
	})
	if err != nil {
		a.cfg.Log.Fatal("Failed to initialise tracing", "error", err)
	}
	a.OnShutdown("tracing", shutdown)
	if a.cfg.OtelEnabled {
		a.cfg.Log.Info("Tracing enabled", "endpoint", a.cfg.OtelEndpoint, "sampling_ratio", a.cfg.OtelSamplingRatio)
	}
}

func (a *Application) SetApp(appHandler contracts.Handler, healthHandler contracts.Handler) {
	a.setHealthHandler(healthHandler)
	a.setAppHandler(appHandler)
	a.setAppServer()
}

func (a *Application) setHealthHandler(healthHandler contracts.Handler) {
	healthRouter := httprouter.New()
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setStores() {
	if rdb := a.cfg.Client.Redis; rdb != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(rdb, a.cfg.IdempotencyTTL, "slotify:idem")
		a.rateLimiter = middleware.NewRedisRateLimiter(rdb, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow, "slotify:rl")
		a.cfg.Log.Info("Rate limiting and idempotency backed by Redis")
		return
	}
	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewUserRateLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
	a.cfg.Log.Info("Rate limiting and idempotency kept in process")
}

func (a *Application) setAppHandler(appHandler contracts.Handler) {
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	a.setStores()

	// Middleware order: Recovery → Tracing → Logging → MaxSize → ContentType → RateLimit → Timeout → Idempotency → Router
	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.ScopeFunc(a.callerKey), a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter, a.callerKey, a.cfg.RateLimitWindow, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = otelhttp.NewHandler(appHttpHandler, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Handler returns the routed handler serving both health and API endpoints.
func (a *Application) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)
	return mux
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}
	a.cfg.Log.Info("Server stopped gracefully")

	a.Stop(ctx)
}

// Stop releases the middleware stores and runs the shutdown hooks. Backend
// connections are closed last.
func (a *Application) Stop(ctx context.Context) {
	a.cfg.Log.Info("Stopping background workers...")
	if a.idempotencyStore != nil {
		a.idempotencyStore.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	for _, hook := range a.hooks {
		if err := hook.fn(ctx); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", hook.name, "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
}
