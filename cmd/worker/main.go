// Package main runs the background job worker (recording creation and VOD
// mirroring to S3).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vistream/backend/config"
	"github.com/vistream/backend/internal/livepeer"
	"github.com/vistream/backend/internal/locks"
	"github.com/vistream/backend/internal/recordings"
	"github.com/vistream/backend/internal/streams"
	"github.com/vistream/backend/internal/worker"
	"github.com/vistream/backend/pkg/database"
	"github.com/vistream/backend/pkg/queue"
	"github.com/vistream/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	lockCoord := locks.NewRedisCoordinator(rdb.Client, time.Duration(cfg.Webhook.LockTTLSeconds)*time.Second, logger)
	livepeerClient := livepeer.NewHTTPClient(cfg.Livepeer)

	streamStore := streams.NewPostgresStore(pool)
	recStore := recordings.NewPostgresStore(pool)
	recService := recordings.NewService(recStore, streamStore, lockCoord, jobQueue, livepeerClient, s3Client, logger)
	processor := worker.NewProcessor(recService, recStore, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
