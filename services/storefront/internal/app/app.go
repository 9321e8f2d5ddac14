package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/RentMarket/pkg/health"
	"github.com/utafrali/RentMarket/pkg/httpclient"
	pkgkafka "github.com/utafrali/RentMarket/pkg/kafka"
	"github.com/utafrali/RentMarket/pkg/logger"
	"github.com/utafrali/RentMarket/pkg/middleware"
	"github.com/utafrali/RentMarket/pkg/tracing"
	"github.com/utafrali/RentMarket/services/storefront/internal/config"
	"github.com/utafrali/RentMarket/services/storefront/internal/event"
	handler "github.com/utafrali/RentMarket/services/storefront/internal/handler/http"
	"github.com/utafrali/RentMarket/services/storefront/internal/normalize"
	"github.com/utafrali/RentMarket/services/storefront/internal/ratingapi"
	redisrepo "github.com/utafrali/RentMarket/services/storefront/internal/repository/redis"
	"github.com/utafrali/RentMarket/services/storefront/internal/service"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redis          *redis.Client
	producer       *pkgkafka.Producer
	rateLimiter    *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, log *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize tracing. When disabled the global no-op provider stays in place.
	tracerCfg := tracing.DefaultConfig(serviceName)
	tracerCfg.Environment = cfg.Environment
	tracerCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracerCfg.SampleRate = cfg.OTELSampleRate
	tracerCfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis for review form sessions.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize the Kafka producer when events are enabled.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher = event.NopPublisher{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		publisher = producer
		log.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		log.Info("kafka disabled, review events are dropped")
	}

	// Outbound client for the ratings backend.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.RatingsAPITimeout
	httpCfg.MaxRetries = cfg.RatingsAPIMaxRetries

	breakerCfg := httpclient.DefaultCircuitBreakerConfig("ratings-api")
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests

	ratingsHTTP := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), breakerCfg, log)
	ratingsAPI := ratingapi.New(ratingsHTTP, cfg.RatingsAPIURL, logger.Component(log, "ratingapi"))

	// Build the dependency graph.
	normalizer := normalize.New(normalize.DefaultFieldChains(), logger.Component(log, "normalizer"))
	eventProducer := event.NewProducer(publisher, log)
	formRepo := redisrepo.NewFormStateRepository(rdb, cfg.FormSessionTTL)
	ratingService := service.NewRatingService(ratingsAPI, normalizer, eventProducer, formRepo, log, service.Options{
		SubmitTimeout:    cfg.SubmitTimeout,
		StaleSubmitAfter: cfg.StaleSubmitAfter,
	})

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterCritical("ratings-api", ratingsAPI.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.Environment = cfg.Environment

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	router := handler.NewRouter(ratingService, healthHandler, handler.RouterConfig{
		CORS:        corsCfg,
		RateLimiter: rateLimiter,
	}, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + cfg.RatingsAPITimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         log,
		redis:          rdb,
		producer:       producer,
		rateLimiter:    rateLimiter,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.rateLimiter.Close()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
