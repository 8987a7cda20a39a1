package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/config"
	"disaster_backend/internal/database"
	"disaster_backend/internal/email"
	"disaster_backend/internal/events"
	"disaster_backend/internal/feeds"
	"disaster_backend/internal/handlers"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/middleware"
	"disaster_backend/internal/routes"
	"disaster_backend/internal/services"
	"disaster_backend/internal/validator"
	"disaster_backend/internal/workers"
	"disaster_backend/pkg/apperrors"
	"disaster_backend/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	publishTimeout       = 5 * time.Second
	cacheCleanupInterval = time.Minute
)

// Infrastructure - внешние зависимости, на которых строятся сервисы
type Infrastructure struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Store     cache.Store
	WSManager *ws.WebSocketManager
	Publisher *events.Multi
	Kafka     *events.KafkaPublisher
	Relay     *events.RedisRelay
	Mailer    email.Provider
}

type App struct {
	cfg       *config.Config
	infra     *Infrastructure
	services  *services.ServiceContainer
	server    *http.Server
	scheduler *workers.Scheduler
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	apperrors.SetDebug(cfg.IsDevelopment())
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	application, err := New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Serve(ctx); err != nil {
		logger.Fatal("Server error", "error", err)
	}
}

// New подключает БД, применяет миграции и собирает все компоненты
func New(cfg *config.Config) (*App, error) {
	logger.Info("Connecting to database...")
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.DSN, cfg.Database.MigrationsPath); err != nil {
			return nil, err
		}
	}

	infra, err := initializeInfrastructure(cfg, db)
	if err != nil {
		return nil, err
	}

	serviceContainer := initializeServices(cfg, infra)
	ginRouter := SetupRouter(cfg, infra, serviceContainer)

	scheduler, err := initializeWorkers(cfg, db, serviceContainer)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		infra:    infra,
		services: serviceContainer,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           ginRouter,
			ReadHeaderTimeout: 10 * time.Second,
		},
		scheduler: scheduler,
	}, nil
}

func initializeInfrastructure(cfg *config.Config, db *gorm.DB) (*Infrastructure, error) {
	infra := &Infrastructure{
		DB:        db,
		WSManager: ws.NewWebSocketManager(),
	}

	if cfg.Cache.Driver == "redis" || cfg.Realtime.RedisRelay {
		infra.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if cfg.Cache.Driver == "redis" {
		infra.Store = cache.NewRedisStore(infra.Redis, "disaster:")
	} else {
		infra.Store = cache.NewMemoryStore(cacheCleanupInterval)
	}
	logger.Info("Cache initialized", "driver", cfg.Cache.Driver)

	// Приемники событий: локальный hub всегда, redis и kafka по конфигу
	sinks := []events.Sink{events.NewHubSink(infra.WSManager)}
	if cfg.Realtime.RedisRelay {
		origin := uuid.NewString()
		sinks = append(sinks, events.NewRedisPublisher(infra.Redis, origin))
		infra.Relay = events.NewRedisRelay(infra.Redis, origin, infra.WSManager)
	}
	if len(cfg.Realtime.KafkaBrokers) > 0 {
		infra.Kafka = events.NewKafkaPublisher(cfg.Realtime.KafkaBrokers, cfg.Realtime.KafkaTopic)
		sinks = append(sinks, infra.Kafka)
	}
	infra.Publisher = events.NewMulti(publishTimeout, sinks...)
	logger.Info("Event sinks initialized", "redis_relay", cfg.Realtime.RedisRelay, "kafka_brokers", len(cfg.Realtime.KafkaBrokers))

	mailer, err := initializeMailer(cfg)
	if err != nil {
		return nil, err
	}
	infra.Mailer = mailer

	return infra, nil
}

func initializeMailer(cfg *config.Config) (email.Provider, error) {
	smtpConfig := email.ConfigFrom(cfg)
	if !smtpConfig.Enabled() {
		logger.Warn("SMTP host is not set, alert emails are written to the log")
		return email.LogProvider{}, nil
	}

	templates, err := email.NewBuiltinTemplateManager()
	if err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return email.NewGomailProvider(smtpConfig, templates), nil
}

func initializeServices(cfg *config.Config, infra *Infrastructure) *services.ServiceContainer {
	return services.NewServiceContainer(
		services.NewRepositories(),
		infra.Store,
		infra.Publisher,
		infra.Mailer,
		services.Settings{
			Outbox:       cfg.Fanout.Mode == config.FanoutOutbox,
			BatchSize:    cfg.Fanout.BatchSize,
			ResponderTTL: cfg.ResponderTTL(),
			Matching: algorithms.Options{
				MaxDistanceMeters: cfg.Matching.MaxDistanceMeters,
				Limit:             cfg.Matching.Limit,
			},
			AlertRecipients: cfg.Email.AlertTo,
			AlertThreshold:  cfg.Email.AlertThreshold,
		},
	)
}

func initializeHandlers(cfg *config.Config, infra *Infrastructure, container *services.ServiceContainer) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New(), cfg.JWT.Secret)

	return &handlers.AppHandlers{
		DisasterHandler:     handlers.NewDisasterHandler(baseHandler, container.ReportService, container.AssignmentService),
		ResponderHandler:    handlers.NewResponderHandler(baseHandler, container.ResponderService, container.AssignmentService),
		NotificationHandler: handlers.NewNotificationHandler(baseHandler, container.NotificationService),
		HealthHandler:       handlers.NewHealthHandler(healthChecks(infra)),
	}
}

func healthChecks(infra *Infrastructure) map[string]handlers.Pinger {
	checks := make(map[string]handlers.Pinger)
	if infra.DB != nil {
		checks["database"] = handlers.PingerFunc(func(ctx context.Context) error {
			sqlDB, err := infra.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	if infra.Redis != nil {
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return infra.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// SetupRouter собирает gin с middleware и всеми маршрутами
func SetupRouter(cfg *config.Config, infra *Infrastructure, container *services.ServiceContainer) *gin.Engine {
	appHandlers := initializeHandlers(cfg, infra, container)
	wsHandler := ws.NewWebSocketHandler(infra.WSManager, cfg.Server.AllowedOrigins)

	ginRouter := initializeGinRouter(cfg, infra.DB)
	routes.RegisterRoutes(ginRouter, appHandlers, wsHandler, cfg.JWT.Secret)
	return ginRouter
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(metrics.Middleware())
	router.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}

func initializeWorkers(cfg *config.Config, db *gorm.DB, container *services.ServiceContainer) (*workers.Scheduler, error) {
	scheduler := workers.NewScheduler(time.Minute)

	if cfg.Fanout.Mode == config.FanoutOutbox {
		worker := workers.NewOutboxWorker(db, container.OutboxService, cfg.Fanout.ClaimLimit, cfg.Fanout.MaxAttempts)
		if err := scheduler.Add(cfg.Fanout.Schedule, worker); err != nil {
			return nil, err
		}
	}

	if cfg.Ingestion.Enabled {
		feed := feeds.NewGDACSClient(cfg.Ingestion.FeedURL, time.Duration(cfg.Ingestion.Timeout)*time.Second)
		if err := scheduler.Add(cfg.Ingestion.Schedule, workers.NewIngestionWorker(db, feed, container.ReportService)); err != nil {
			return nil, err
		}
	}

	return scheduler, nil
}

// Serve блокируется до отмены ctx, затем останавливает все по порядку
func (a *App) Serve(ctx context.Context) error {
	go a.infra.WSManager.Run(ctx)
	if a.infra.Relay != nil {
		go func() {
			if err := a.infra.Relay.Run(ctx); err != nil {
				logger.Error("Redis relay stopped", "error", err)
			}
		}()
	}
	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", a.server.Addr, "fanout", a.cfg.Fanout.Mode)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server startup error: %w", err)
		}
	case <-ctx.Done():
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	a.infra.Publisher.Wait()
	if a.infra.Kafka != nil {
		if err := a.infra.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if a.infra.Redis != nil {
		if err := a.infra.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if sqlDB, err := a.infra.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
