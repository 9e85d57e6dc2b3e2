package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/catalog"
	"github.com/uptownstitch/storefront/internal/config"
	"github.com/uptownstitch/storefront/internal/contact"
	"github.com/uptownstitch/storefront/internal/event"
	handler "github.com/uptownstitch/storefront/internal/handler/http"
	"github.com/uptownstitch/storefront/internal/repository"
	"github.com/uptownstitch/storefront/internal/repository/memory"
	"github.com/uptownstitch/storefront/internal/repository/postgres"
	redisrepo "github.com/uptownstitch/storefront/internal/repository/redis"
	"github.com/uptownstitch/storefront/internal/service"
	"github.com/uptownstitch/storefront/migrations"
	"github.com/uptownstitch/storefront/pkg/database"
	"github.com/uptownstitch/storefront/pkg/health"
	"github.com/uptownstitch/storefront/pkg/httpclient"
	pkgkafka "github.com/uptownstitch/storefront/pkg/kafka"
	"github.com/uptownstitch/storefront/pkg/tracing"
)

const serviceName = "cart"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	registry       *cart.Registry
	purger         *postgres.SnapshotRepository
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// streamsDone closes when shutdown starts so open event streams end.
	streamsDone chan struct{}
	stopStreams sync.Once
	background  sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{
		cfg:         cfg,
		logger:      logger,
		streamsDone: make(chan struct{}),
	}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	repo, err := a.openRepository(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Build the dependency graph.
	a.registry = cart.NewRegistry(repo, logger)
	a.registry.Use(cart.PersistenceListener(repo, logger))

	if cfg.CartEventsEnabled {
		// Listeners run inside the cart mutation, so publishing must not wait
		// on broker acks.
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		kafkaCfg.Async = true
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		a.registry.Use(event.NewProducer(a.producer, logger).Listener())
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Storefront REST API client with circuit breaker.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.APITimeout(),
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
		Permanent:       catalog.MissingProductResponse,
	})
	cbCfg := httpclient.DefaultCircuitBreakerConfig("storefront-api")
	apiClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
		WithFallback(service.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	messages := contact.NewClient(apiClient, cfg.APIBaseURL, logger)
	cartService := service.NewCartService(a.registry, catalog.NewClient(apiClient, cfg.APIBaseURL, logger), logger)
	checkoutService := service.NewCheckoutService(messages, logger)
	contactService := service.NewContactService(messages, logger)

	// HTTP router.
	router := handler.NewRouter(cartService, checkoutService, contactService, healthHandler, logger, handler.RouterConfig{
		CORS:        cfg.CORS(),
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		StreamsDone: a.streamsDone,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.httpServer.RegisterOnShutdown(a.closeStreams)

	return a, nil
}

// openRepository connects the configured persistence backend and registers
// its readiness check.
func (a *App) openRepository(ctx context.Context, healthHandler *health.Handler) (repository.SnapshotRepository, error) {
	cfg, logger := a.cfg, a.logger
	ttl := cfg.CartTTLDuration()

	switch cfg.PersistenceBackend {
	case config.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.Redis().Addr()),
			slog.Int("db", cfg.RedisDB),
		)
		repo := redisrepo.NewSnapshotRepository(rdb, ttl)
		healthHandler.Register("redis", repo.Ping)
		return repo, nil

	case config.BackendPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(nil, pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}

		// Run database migrations.
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		// Configure slow query logging.
		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		}

		repo := postgres.NewSnapshotRepository(pool, ttl)
		a.purger = repo
		healthHandler.Register("postgres", repo.Ping)
		return repo, nil

	case config.BackendMemory:
		logger.Warn("cart snapshots kept in memory only; carts do not survive a restart")
		return memory.NewSnapshotRepository(), nil
	}

	return nil, fmt.Errorf("unknown persistence backend %q", cfg.PersistenceBackend)
}

// Run starts the HTTP server and background loops, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.registry.Run(bgCtx, a.cfg.StoreSweepInterval(), a.cfg.StoreIdle())
	}()

	if a.purger != nil && a.cfg.PurgeIntervalMins > 0 {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			a.purgeExpired(bgCtx, a.cfg.PurgeInterval())
		}()
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("persistence", a.cfg.PersistenceBackend),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopBackground()
	a.background.Wait()

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// purgeExpired deletes snapshots past their expiry every interval.
func (a *App) purgeExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.purger.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("purge of expired cart snapshots failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired cart snapshots", slog.Int64("deleted", n))
			}
		}
	}
}

func (a *App) closeStreams() {
	a.stopStreams.Do(func() { close(a.streamsDone) })
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests, end event streams)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, then the persistence backend
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (10s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close the producer and the backend.
	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
