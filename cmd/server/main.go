package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/auth"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/middleware"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/router"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
	ws "github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/websocket"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisUp := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisUp = false
		logger.Warn("redis not available", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// External clients
	var storage client.StorageClient
	if cfg.R2.Configured() {
		r2, err := client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			logger.Warn("object storage disabled", zap.Error(err))
		} else {
			storage = r2
		}
	}

	var encoder client.Encoder
	if enc := client.NewEncoderClient(&cfg.Encoder); enc.IsConfigured() {
		encoder = enc
	} else {
		logger.Info("encoder service not configured, stage outputs are simulated")
	}

	var verifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		v, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			logger.Warn("OIDC verification disabled", zap.String("issuer", cfg.OIDC.Issuer), zap.Error(err))
		} else {
			verifier = v
			defer v.Close()
		}
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	// Initialize services
	sessions := store.NewRedisStore(redisClient, cfg.Session.TTL())
	notices := notify.NewRegistry(cfg.Notify.DedupeWindow(), logger.Named("notify"))
	pipeline := service.NewPipelineService(sessions, notices, nil, storage, logger.Named("pipeline"))
	dispatch := service.NewDispatchService(pipeline, sessions, asynqClient, logger.Named("dispatch"))
	share := service.NewShareService(pipeline, hub, storage, logger.Named("share"))
	clips := service.NewClipService(pipeline, storage)

	app := router.New(router.Deps{
		Config:   cfg,
		Pipeline: pipeline,
		Dispatch: dispatch,
		Share:    share,
		Clips:    clips,
		Hub:      hub,
		Auth:     middleware.NewAuthMiddleware(verifier, cfg.JWT.Secret),
		Limiter:  middleware.NewRateLimiter(redisClient, logger.Named("ratelimit")),
		Services: map[string]bool{
			"redis":   redisUp,
			"r2":      storage != nil,
			"encoder": encoder != nil,
			"oidc":    verifier != nil,
		},
		Logger: logger,
	})

	// Start Asynq worker server
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			service.QueueRender: 5,
			service.QueueBlend:  3,
			service.QueueMaster: 2,
		},
		Logger:   logger.Named("asynq").Sugar(),
		LogLevel: logging.AsynqLevel(cfg.Server.LogLevel),
	})
	mux := asynq.NewServeMux()
	worker.Register(mux, worker.Deps{
		Pipeline: pipeline,
		Dispatch: dispatch,
		Encoder:  encoder,
		Hub:      hub,
		Logger:   logger.Named("worker"),
	})
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	defer srv.Shutdown()

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	logger.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
