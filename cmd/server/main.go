// Package main runs the video platform HTTP server with WebSocket and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vistream/backend/config"
	"github.com/vistream/backend/internal/auth"
	"github.com/vistream/backend/internal/billing"
	"github.com/vistream/backend/internal/ledger"
	"github.com/vistream/backend/internal/livepeer"
	"github.com/vistream/backend/internal/locks"
	"github.com/vistream/backend/internal/middleware"
	"github.com/vistream/backend/internal/realtime"
	"github.com/vistream/backend/internal/recordings"
	"github.com/vistream/backend/internal/streams"
	"github.com/vistream/backend/internal/subscriptions"
	"github.com/vistream/backend/internal/webhooks"
	"github.com/vistream/backend/internal/worker"
	"github.com/vistream/backend/pkg/database"
	"github.com/vistream/backend/pkg/queue"
	"github.com/vistream/backend/pkg/redis"
	"github.com/vistream/backend/pkg/response"
	"github.com/vistream/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	billingClient := billing.NewHTTPClient(cfg.Stripe)
	livepeerClient := livepeer.NewHTTPClient(cfg.Livepeer)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	lockCoord := locks.NewRedisCoordinator(rdb.Client, time.Duration(cfg.Webhook.LockTTLSeconds)*time.Second, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Subscriptions
	subStore := subscriptions.NewPostgresStore(pool)
	subMachine := subscriptions.Machine{
		MemberPriceID:  cfg.Stripe.MemberPriceID,
		PremiumPriceID: cfg.Stripe.PremiumPriceID,
	}
	subService := subscriptions.NewService(subStore, lockCoord, subMachine, logger)
	subHandler := subscriptions.NewHandler(subStore, billingClient, logger)

	// Streams
	streamStore := streams.NewPostgresStore(pool)
	streamService := streams.NewService(streamStore, lockCoord, jobQueue, logger)
	streamService.SetNotifier(hub)
	streamHandler := streams.NewHandler(streamStore, livepeerClient, logger)

	// Recordings
	recStore := recordings.NewPostgresStore(pool)
	recService := recordings.NewService(recStore, streamStore, lockCoord, jobQueue, livepeerClient, s3Client, logger)
	recService.SetNotifier(hub)
	recHandler := recordings.NewHandler(recService, recStore, streamStore, logger)

	// Webhook ingestion
	guard := ledger.NewPostgresStore(pool)
	skew := time.Duration(cfg.Webhook.SkewSeconds) * time.Second
	webhookHandler := webhooks.NewHandler(
		webhooks.NewVerifier(cfg.Stripe.WebhookSecret, skew),
		webhooks.NewVerifier(cfg.Livepeer.WebhookSecret, skew),
		guard, subService, streamService, recService, logger)

	sweeper := worker.NewLedgerSweeper(guard,
		time.Duration(cfg.Webhook.PendingSweepSeconds)*time.Second,
		time.Duration(cfg.Webhook.PendingSweepSeconds)*time.Second, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Billing
		api.POST("/billing/checkout-session", subHandler.CreateCheckoutSession)
		api.POST("/billing/portal-session", subHandler.CreatePortalSession)
		api.DELETE("/billing/subscriptions/:id", subHandler.CancelSubscription)
		api.GET("/billing/subscription", subHandler.GetMySubscription)

		// Streams
		api.POST("/streams", streamHandler.Create)
		api.GET("/streams", streamHandler.List)
		api.GET("/streams/:id", streamHandler.GetByID)
		api.GET("/streams/:id/status", streamHandler.Status)
		api.DELETE("/streams/:id", streamHandler.Delete)

		// Recordings
		api.GET("/streams/:id/recording", recHandler.GetByStream)
		api.POST("/streams/:id/recording", recHandler.Create)
		api.DELETE("/recordings/:id", recHandler.Delete)
		api.GET("/recordings/:id/download-url", recHandler.DownloadURL)
	}

	// Webhooks (no JWT; authenticated by signature over the raw body)
	router.POST("/webhooks/billing", webhookHandler.Billing)
	router.POST("/webhooks/stream", webhookHandler.Video)
	router.POST("/webhooks/recording", webhookHandler.Video)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Run(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
