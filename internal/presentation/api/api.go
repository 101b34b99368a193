package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/namimod25/toko-online/internal/infrastructure/configs"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/metrics"
	"github.com/namimod25/toko-online/internal/infrastructure/ratelimiter"
	healthHandler "github.com/namimod25/toko-online/internal/presentation/handler/health"
	productsHandler "github.com/namimod25/toko-online/internal/presentation/handler/products"
	realtimeHandler "github.com/namimod25/toko-online/internal/presentation/handler/realtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName     = "toko-online"
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Application struct {
	config          configs.Config
	productsHandler *productsHandler.Handler
	realtimeHandler *realtimeHandler.Handler
	healthHandler   *healthHandler.Handler
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
	metrics         *metrics.Metrics
	onShutdown      []func()
}

func NewApplication(
	config configs.Config,
	productsHandler *productsHandler.Handler,
	realtimeHandler *realtimeHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	return &Application{
		config:          config,
		productsHandler: productsHandler,
		realtimeHandler: realtimeHandler,
		healthHandler:   healthHandler,
		logger:          logger,
		ratelimiter:     ratelimiter,
		metrics:         metrics,
	}
}

// OnShutdown registers f to run when the server starts shutting down. Hijacked
// WebSocket connections are not closed by http.Server.Shutdown; f closes them.
func (app *Application) OnShutdown(f func()) {
	app.onShutdown = append(app.onShutdown, f)
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(app.rateLimiterMiddleware)

			r.Route("/products", func(r chi.Router) {
				r.Post("/", app.productsHandler.CreateProductHandler)
				r.Get("/", app.productsHandler.ListProductsHandler)
				r.Get("/{productId}", app.productsHandler.GetProductHandler)
				r.Put("/{productId}", app.productsHandler.UpdateProductHandler)
				r.Delete("/{productId}", app.productsHandler.DeleteProductHandler)
				r.Patch("/{productId}/stock", app.productsHandler.UpdateStockHandler)
			})
		})

		// Long-lived; no request timeout.
		r.With(app.rateLimiterMiddleware).Get("/realtime", app.realtimeHandler.ServeWS)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", app.metrics.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	return otelhttp.NewHandler(r, serviceName)
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}
	for _, f := range app.onShutdown {
		srv.RegisterOnShutdown(f)
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.healthHandler.SetHealthy(false)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
