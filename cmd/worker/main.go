package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvStudio/internal/browser"
	"cvStudio/internal/config"
	"cvStudio/internal/database"
	"cvStudio/internal/export"
	"cvStudio/internal/metrics"
	"cvStudio/internal/photo"
	"cvStudio/internal/pipeline"
	"cvStudio/internal/storage"
	"cvStudio/internal/tasks"
	"cvStudio/internal/templates"
	"cvStudio/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	driver, err := browser.New(cfg.Browser, logger)
	if err != nil {
		log.Fatalf("init browser driver: %v", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Error("close browser failed", slog.Any("error", err))
		}
	}()

	engine := export.NewEngine(driver, export.Config{
		ImageTimeout:  cfg.Export.ImageTimeout,
		PrintGrace:    cfg.Export.PrintGrace,
		StandardScale: cfg.Export.StandardScale,
		HighScale:     cfg.Export.HighScale,
		Observer:      metrics.ExportObserver{},
	}, logger)
	resolver := templates.NewResolver(templates.MustRegistry(), templates.NewDBCatalog(db))
	photos := photo.NewService(storageClient, nil, logger)
	pipe := pipeline.New(resolver, photos, driver, engine, logger)

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		// 每个任务占用一个浏览器页面
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	exportHandler := worker.NewExportTaskHandler(db, storageClient, pipe, redisClient, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeExportPDF, exportHandler)

	if cfg.Worker.MetricsPort > 0 {
		go serveMetrics(fmt.Sprintf(":%d", cfg.Worker.MetricsPort), logger)
	}

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
