package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vendora/promotion/internal/cache"
	"github.com/vendora/promotion/internal/config"
	"github.com/vendora/promotion/internal/event"
	handler "github.com/vendora/promotion/internal/handler/http"
	"github.com/vendora/promotion/internal/repository/postgres"
	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/migrations"
	"github.com/vendora/promotion/pkg/database"
	"github.com/vendora/promotion/pkg/health"
	pkgkafka "github.com/vendora/promotion/pkg/kafka"
	"github.com/vendora/promotion/pkg/tracing"
)

// App wires together all dependencies and runs the promotion service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redisClient     *redis.Client
	producer        *pkgkafka.Producer
	productConsumer *pkgkafka.Consumer
	lifecycle       *service.LifecycleService
	httpServer      *http.Server
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize tracing.
	tracingCfg := tracing.DefaultConfig("promotion-service")
	tracingCfg.Environment = cfg.Environment
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.SampleRate = cfg.OTELSampleRate
	tracingCfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, "promotion")

	// Initialize Redis for the evaluable promotion cache.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	promotionCache := cache.NewPromotionCache(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost), slog.Int("db", cfg.RedisDB))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	promotionRepo := postgres.NewPromotionRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	templateRepo := postgres.NewTemplateRepository(pool)

	eventProducer := event.NewProducer(producer, logger)
	ledger := service.NewLedgerService(pool, logger)
	promotionService := service.NewPromotionService(promotionRepo, usageRepo, promotionCache, eventProducer, logger)
	evaluationService := service.NewEvaluationService(promotionRepo, promotionCache, ledger, eventProducer, logger)
	bulkService := service.NewBulkService(promotionService, promotionRepo, eventProducer, logger)
	templateService := service.NewTemplateService(templateRepo, promotionService, promotionRepo, logger)
	lifecycleService := service.NewLifecycleService(promotionRepo, promotionCache, logger)

	// Consume product.created events to propagate auto-apply targeting.
	eventConsumer := event.NewConsumer(promotionService, logger)
	idempotency := pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	productConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaConsumerGroup,
		Topic:   event.TopicProductCreated,
	}, pkgkafka.IdempotentHandler(idempotency, eventConsumer.HandleProductCreated, logger), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(promotionService, evaluationService, bulkService, templateService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redisClient:     redisClient,
		producer:        producer,
		productConsumer: productConsumer,
		lifecycle:       lifecycleService,
		httpServer:      httpServer,
		tracerShutdown:  tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the event consumer, and the lifecycle sweeper,
// then blocks until the context is canceled.
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

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := a.productConsumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			a.logger.Error("product consumer stopped", slog.String("error", err.Error()))
		}
	}()

	go a.runSweeper(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runSweeper periodically deactivates promotions whose window has closed.
func (a *App) runSweeper(ctx context.Context) {
	interval := time.Duration(a.cfg.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := a.lifecycle.Sweep(ctx, time.Now().UTC())
			if err != nil {
				a.logger.Error("lifecycle sweep failed", slog.String("error", err.Error()))
				continue
			}
			if swept > 0 {
				a.logger.Info("lifecycle sweep deactivated promotions", slog.Int64("count", swept))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Close Kafka consumer and producer.
	if err := a.productConsumer.Close(); err != nil {
		a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	// Close Redis client.
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	// Close PostgreSQL pool.
	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
