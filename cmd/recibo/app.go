package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"recibo/internal/config"
	"recibo/internal/constants"
	"recibo/internal/gateway"
	"recibo/internal/ledger"
	"recibo/internal/logger"
	"recibo/internal/media"
	"recibo/internal/oracle"
	"recibo/internal/reconcile"
	"recibo/pkg/circuitbreaker"
	"recibo/pkg/health"
	"recibo/pkg/metrics"
	"recibo/pkg/middleware"
	"recibo/pkg/ratelimit"
	"recibo/pkg/retry"
)

type App struct {
	config     *config.Config
	logger     logger.Logger
	ledger     *ledger.Ledger
	gateway    *gateway.Client
	dispatcher *reconcile.Dispatcher
	server     *http.Server
	router     *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("recibo")
	}
	return &App{
		config: cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initLedger(ctx); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	policy := retry.DefaultPolicy()
	if r := a.config.Ledger.Retry; r.MaxAttempts > 0 {
		policy = retry.Policy{
			MaxAttempts:     r.MaxAttempts,
			InitialInterval: r.InitialInterval,
			MaxInterval:     r.MaxInterval,
			Multiplier:      r.Multiplier,
			MaxElapsedTime:  r.MaxElapsedTime,
		}
	}

	store := ledger.NewFileStore(a.config.Ledger.Path)
	led, err := ledger.Open(ctx, store, policy, a.logger)
	if err != nil {
		return err
	}
	a.ledger = led
	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	a.gateway = gateway.NewClient(a.config.Gateway, a.logger)

	var breaker *circuitbreaker.Wrapper
	if a.config.CircuitBreaker.Enabled {
		breaker = circuitbreaker.NewWrapper(a.breakerConfig())
		a.logger.InfowCtx(ctx, "Circuit breaker enabled for oracle requests")
	}

	verifier := oracle.NewClient(a.config.Oracle, breaker, a.logger)
	resolver := media.NewResolver(a.gateway, a.logger)
	coordinator := reconcile.NewCoordinator(a.ledger, resolver, verifier, a.gateway, a.config.Admin.Number, a.logger)

	maxInFlight := a.config.Pipeline.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = constants.DefaultMaxInFlight
	}
	eventTimeout := time.Duration(a.config.Pipeline.EventTimeoutSeconds) * time.Second
	if eventTimeout <= 0 {
		eventTimeout = constants.DefaultEventTimeout
	}

	a.dispatcher = reconcile.NewDispatcher(coordinator, maxInFlight, eventTimeout, a.logger)
	return nil
}

func (a *App) breakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("oracle")
	cb := a.config.CircuitBreaker

	if cb.MaxRequests > 0 {
		cfg.MaxRequests = cb.MaxRequests
	}
	if cb.IntervalSec > 0 {
		cfg.Interval = time.Duration(cb.IntervalSec) * time.Second
	}
	if cb.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(cb.TimeoutSec) * time.Second
	}

	ratio := cb.FailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	minimum := cb.MinimumRequest
	if minimum == 0 {
		minimum = 3
	}
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minimum && failureRatio >= ratio
	}

	return cfg
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.DefaultConfig()
		if a.config.RateLimit.RPS > 0 {
			rateLimitConfig.RPS = a.config.RateLimit.RPS
		}
		if a.config.RateLimit.Burst > 0 {
			rateLimitConfig.Burst = a.config.RateLimit.Burst
		}
		if a.config.RateLimit.CleanupInterval > 0 {
			rateLimitConfig.CleanupInterval = time.Duration(a.config.RateLimit.CleanupInterval) * time.Second
		}
		if a.config.RateLimit.MaxAge > 0 {
			rateLimitConfig.MaxAge = time.Duration(a.config.RateLimit.MaxAge) * time.Second
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := reconcile.NewHandler(a.dispatcher, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterPipelineMetrics()
	metrics.RegisterLedgerMetrics()
	metrics.RegisterHTTPMetrics()
	if a.config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(a.gateway)
	healthRegistry.Register(health.CheckerFunc{
		CheckerName: "ledger",
		Fn: func(ctx context.Context) error {
			store := ledger.NewFileStore(a.config.Ledger.Path)
			_, err := store.Load(ctx)
			return err
		},
	})

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	if a.config.Server.ReadTimeoutSeconds > 0 {
		a.server.ReadTimeout = a.config.Server.ReadTimeoutSeconds * time.Second
	}
	if a.config.Server.WriteTimeoutSeconds > 0 {
		a.server.WriteTimeout = a.config.Server.WriteTimeoutSeconds * time.Second
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	// In-flight pipelines finish their ledger writes and notifications
	// before the process exits.
	if a.dispatcher != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer drainCancel()
		if err := a.dispatcher.Drain(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher drain error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
