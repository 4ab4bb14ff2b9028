package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvStudio/internal/api"
	"cvStudio/internal/auth"
	"cvStudio/internal/browser"
	"cvStudio/internal/config"
	"cvStudio/internal/database"
	"cvStudio/internal/editor"
	"cvStudio/internal/entitlement"
	"cvStudio/internal/export"
	"cvStudio/internal/metrics"
	"cvStudio/internal/photo"
	"cvStudio/internal/pipeline"
	"cvStudio/internal/storage"
	"cvStudio/internal/templates"
)

const photoUploadsPerDay = 50

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.String("db", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	verifier, err := auth.NewVerifierFromConfig(cfg.Auth)
	if err != nil {
		log.Fatalf("init token verifier: %v", err)
	}

	dbSource := entitlement.NewDatabaseSource(db)
	var source entitlement.Source = dbSource
	if cfg.Entitlement.Source == "http" {
		source = entitlement.NewHTTPSource(cfg.Internal.PaymentBaseURL, cfg.Internal.SharedSecret, nil)
	}
	gate := entitlement.NewGate(source, logger)

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
	photos := photo.NewService(storageClient, photo.NewClamdScanner(cfg.Clamd.Address), logger)
	pipe := pipeline.New(resolver, photos, driver, engine, logger)

	handlers := api.Handlers{
		CV:       api.NewCVHandler(db, photos, pipe, resolver, cfg.API.MaxCVsPerUser),
		Sections: api.NewSectionHandler(db, editor.NewSessionStore(redisClient, editor.DefaultSessionTTL)),
		Export: api.NewExportHandler(api.ExportHandlerConfig{
			DB:             db,
			Resolver:       resolver,
			Gate:           gate,
			Printer:        pipe,
			Enqueuer:       asynqClient,
			Store:          storageClient,
			Limiter:        redisClient,
			ExportsPerHour: cfg.API.ExportsPerHour,
			PresignTTL:     cfg.Export.PresignTTL,
		}),
		Assets:   api.NewAssetHandler(photos, redisClient, photoUploadsPerDay),
		Template: api.NewTemplateHandler(resolver, gate),
		Ws:       api.NewWsHandler(redisClient, verifier, logger, cfg.API.Origins()),
	}
	if cfg.Internal.SharedSecret != "" {
		handlers.Internal = api.NewInternalHandler(dbSource)
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, handlers, verifier, cfg.Internal.SharedSecret)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.WithCORS(cfg.API, router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("api stopped")
}
