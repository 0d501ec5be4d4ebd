package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/brokerchat/internal/api"
	"github.com/lalith-99/brokerchat/internal/config"
	"github.com/lalith-99/brokerchat/internal/db"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/observ"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"github.com/lalith-99/brokerchat/internal/repository"
	"github.com/lalith-99/brokerchat/internal/repository/memory"
	"github.com/lalith-99/brokerchat/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limitmem "github.com/ulule/limiter/v3/drivers/store/memory"
	limitredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]api.HealthCheck)

	// ---------------------------------------------------------------
	// 3. Storage: postgres, or everything in process with the memory store
	// ---------------------------------------------------------------
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store = memory.New()
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store = postgres.NewStore(database.Pool())
		checks["postgres"] = database.Health
	}

	// ---------------------------------------------------------------
	// 4. Realtime: redis fan-out across instances, or a local hub
	// ---------------------------------------------------------------
	hub := realtime.NewHub(logger)
	var (
		publisher   realtime.Publisher
		rateStore   limiter.Store
		redisClient *redis.Client
	)
	if cfg.StoreDriver == config.StoreDriverMemory {
		publisher = realtime.NewLocalPublisher(hub)
		rateStore = limitmem.NewStore()
	} else {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connection established", zap.String("addr", opts.Addr))

		publisher = realtime.NewRedisPublisher(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

		rateStore, err = limitredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "brokerchat:ratelimit",
		})
		if err != nil {
			return fmt.Errorf("create rate limit store: %w", err)
		}

		go func() {
			if err := realtime.RunRedisRelay(ctx, redisClient, hub, logger); err != nil {
				logger.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	}

	// ---------------------------------------------------------------
	// 5. Service and background sweeper
	// ---------------------------------------------------------------
	svc := messaging.NewService(store, publisher, logger, messaging.Options{
		TypingTTL:      cfg.TypingTTL,
		PresenceWindow: cfg.PresenceWindow,
		PublishTimeout: cfg.PublishTimeout,
	})
	go svc.RunTypingSweeper(ctx, cfg.TypingSweepInterval)

	var rateLimiter *limiter.Limiter
	if cfg.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT: %w", err)
		}
		rateLimiter = limiter.New(rateStore, rate)
	}

	// ---------------------------------------------------------------
	// 6. HTTP server with graceful shutdown
	// ---------------------------------------------------------------
	router := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Hub:          hub,
		Logger:       logger,
		JWTSecret:    cfg.JWTSecret,
		Limiter:      rateLimiter,
		HealthChecks: checks,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting brokerchat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// WebSocket connections are hijacked, so Shutdown does not wait on them;
	// they close when the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
