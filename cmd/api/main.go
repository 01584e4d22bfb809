package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/adapter/cache/rediscache"
	"github.com/srgjo27/taxi_availability/internal/adapter/events"
	"github.com/srgjo27/taxi_availability/internal/adapter/handler"
	"github.com/srgjo27/taxi_availability/internal/adapter/repository/postgres"
	"github.com/srgjo27/taxi_availability/internal/adapter/scheduler"
	"github.com/srgjo27/taxi_availability/internal/core/ports"
	"github.com/srgjo27/taxi_availability/internal/core/services"
	"github.com/srgjo27/taxi_availability/internal/platform/clock"
	"github.com/srgjo27/taxi_availability/internal/platform/config"
	"github.com/srgjo27/taxi_availability/internal/platform/database"
	"github.com/srgjo27/taxi_availability/internal/platform/logger"
	"github.com/srgjo27/taxi_availability/internal/platform/retry"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		Connect: retry.Policy{
			Attempts:   cfg.DBConnectAttempts,
			Delay:      cfg.DBConnectDelay,
			Multiplier: 2,
		},
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to db after retries", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		zlog.Fatal("failed to migrate schema", zap.Error(err))
	}

	zlog.Info("connecting to redis", zap.String("addr", cfg.RedisAddr))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}

	queueRedis := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.QueueRedisDB,
	}
	queueClient := asynq.NewClient(queueRedis)
	defer queueClient.Close()
	inspector := asynq.NewInspector(queueRedis)
	defer inspector.Close()

	var publisher ports.EventPublisher = events.Nop{}
	if cfg.RabbitURL != "" {
		p, err := events.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			zlog.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		zlog.Warn("RABBIT_URL not set, booking events are dropped")
	}

	policy := services.DefaultPolicy()
	policy.Location = cfg.Location()
	policy.Cutoff = cfg.BookingCutoff
	policy.SameDayHold = cfg.SameDayHold
	policy.Fleet.Count = cfg.DefaultFleetSize

	deps := services.Deps{
		Store:     postgres.NewStore(db),
		Scheduler: scheduler.NewAsynqScheduler(queueClient, inspector, zlog),
		Cache:     rediscache.NewAvailabilityCache(redisClient, cfg.CacheTTL),
		Events:    publisher,
		Clock:     clock.System{},
		Policy:    policy,
		Logger:    zlog,
	}

	bookingService := services.NewBookingService(deps)
	lifecycleService := services.NewLifecycleService(deps)
	restorationService := services.NewRestorationService(deps)

	worker := scheduler.NewWorker(scheduler.WorkerConfig{Redis: queueRedis}, restorationService, zlog)
	if err := worker.Start(); err != nil {
		zlog.Fatal("failed to start worker", zap.Error(err))
	}

	report, err := restorationService.Reconcile(ctx)
	if err != nil {
		zlog.Error("startup reconcile failed", zap.Error(err))
	} else {
		zlog.Info("startup reconcile finished",
			zap.Int("restored", report.Restored),
			zap.Int("rescheduled", report.Rescheduled),
			zap.Int("failed", report.Failed),
		)
	}

	sweeper, err := scheduler.NewSweeper(cfg.SweepSpec, policy.Location, restorationService, zlog)
	if err != nil {
		zlog.Fatal("failed to create sweeper", zap.Error(err))
	}
	sweeper.Start()

	router := handler.NewRouter(
		handler.RouterConfig{
			AllowedOrigins:  cfg.AllowedOrigins(),
			RateLimitPerMin: cfg.RateLimitPerMin,
			AdminToken:      cfg.AdminToken,
		},
		handler.NewBookingHandler(bookingService, lifecycleService, handler.TransientRetry, zlog),
		handler.NewAdminHandler(bookingService, lifecycleService, handler.TransientRetry, zlog),
		handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": db.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
		zlog,
	)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server startup failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	sweeper.Stop(shutdownCtx)
	worker.Shutdown()

	zlog.Info("server exiting")
}
