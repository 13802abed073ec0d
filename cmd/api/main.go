package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/limelapse/internal/api"
	"github.com/your-org/limelapse/internal/bus"
	"github.com/your-org/limelapse/internal/clients"
	"github.com/your-org/limelapse/internal/config"
	"github.com/your-org/limelapse/internal/observability"
	"github.com/your-org/limelapse/internal/pipeline"
	"github.com/your-org/limelapse/internal/search"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/internal/video"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting limelapse API", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBuckets(context.Background(), cfg.MinIO.ImagesBucket, cfg.MinIO.VideosBucket); err != nil {
		slog.Warn("ensure minio buckets", "error", err)
	}

	// Connect to NATS
	producer, err := bus.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	exporter := clients.NewExportClient(cfg.Collaborators.ExportURL, cfg.Collaborators.PreviewTimeout)
	textEmbedder := clients.NewTextEmbeddingClient(cfg.Collaborators.TextEmbeddingURL)

	videoSvc := video.NewService(db, minioStore, exporter, producer, cfg.MinIO.ImagesBucket, cfg.MinIO.VideosBucket)
	searchSvc := search.NewService(db, textEmbedder)
	normalizer := pipeline.NewNormalizer(producer)

	router := api.NewRouter(api.RouterConfig{
		JWTSecret:     cfg.Auth.JWTSecret,
		ImagesBucket:  cfg.MinIO.ImagesBucket,
		CapabilityTTL: cfg.MinIO.PresignExpiry,
		DB:            db,
		MinIO:         minioStore,
		Producer:      producer,
		Normalizer:    normalizer,
		Videos:        videoSvc,
		Search:        searchSvc,
	})

	// Previews render synchronously; the write timeout has to outlast them.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Collaborators.PreviewTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
