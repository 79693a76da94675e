package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ktrace/internal/collector"
	"ktrace/internal/config"
	"ktrace/internal/constants"
	"ktrace/internal/logger"
	"ktrace/pkg/bootstrap"
	"ktrace/pkg/circuitbreaker"
	"ktrace/pkg/health"
	"ktrace/pkg/metrics"
	"ktrace/pkg/middleware"
	"ktrace/pkg/ratelimit"
	"ktrace/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	service        *collector.Service
	limiter        *ratelimit.Limiter
	health         *health.CheckerRegistry
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.Provider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.config, tracing.ComponentCollector)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize sink: %w", err)
	}

	a.initRouter()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Collector.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Collector.Server.ReadTimeout,
		WriteTimeout: a.config.Collector.Server.WriteTimeout,
	}
	return nil
}

func (a *App) initService(ctx context.Context) error {
	sink, checker, err := a.dbConnector.InitSink(ctx)
	if err != nil {
		return err
	}
	a.health.Register(checker)

	opts := []collector.ServiceOption{collector.WithLogger(a.logger)}

	if cb := bootstrap.BreakerConfig(a.config.CircuitBreaker, "collector-sink-"+sink.Name()); cb != nil {
		opts = append(opts, collector.WithBreaker(circuitbreaker.NewWrapper(*cb)))
	}

	if a.config.Collector.Forward.Enabled {
		kafkaCfg := a.config.Broker.Kafka
		opts = append(opts, collector.WithForwarder(collector.NewKafkaForwarder(kafkaCfg, a.logger)))
		a.health.RegisterOptional(health.NewKafkaChecker(kafkaCfg.Brokers))
		a.logger.InfowCtx(ctx, "Kafka forwarding enabled", "brokers", kafkaCfg.Brokers, "topic", kafkaCfg.Topic)
	}

	a.service = collector.NewService(sink, opts...)
	return nil
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(a.tracerProvider.ServiceName()))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggerMiddleware(a.logger))

	metrics.RegisterCollectorMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	if a.config.Collector.Forward.Enabled {
		metrics.RegisterBrokerMetrics()
	}

	router.GET("/health", func(c *gin.Context) {
		h := a.health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/")
	if a.config.Collector.RateLimit.Enabled {
		cfg := ratelimit.FromConfig(a.config.Collector.RateLimit)
		a.limiter = ratelimit.NewLimiter(cfg)
		api.Use(a.limiter.Middleware())
		a.logger.Infow("Rate limiting enabled", "rps", cfg.RPS, "burst", cfg.Burst)
	}
	collector.NewHandler(a.service, a.logger).RegisterRoutes(api)

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Collector listening",
			"port", a.config.Collector.Server.Port,
			"collect_endpoint", fmt.Sprintf("http://localhost:%d/collect", a.config.Collector.Server.Port),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down collector")

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.limiter != nil {
		a.limiter.Close()
	}

	if a.service != nil {
		if err := a.service.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if err := a.dbConnector.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	a.logger.InfowCtx(ctx, "Collector exited successfully")
	return nil
}
