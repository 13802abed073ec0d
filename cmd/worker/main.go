package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/limelapse/internal/bus"
	"github.com/your-org/limelapse/internal/clients"
	"github.com/your-org/limelapse/internal/config"
	"github.com/your-org/limelapse/internal/observability"
	"github.com/your-org/limelapse/internal/pipeline"
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

	slog.Info("starting limelapse worker",
		"workers", cfg.Pipeline.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

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

	// Connect to NATS
	producer, err := bus.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Error("ensure nats stream", "error", err)
		os.Exit(1)
	}

	consumer, err := bus.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborator clients
	blurClient := clients.NewBlurClient(cfg.Collaborators.BlurURL)
	imageEmbedder := clients.NewImageEmbeddingClient(cfg.Collaborators.ImageEmbeddingURL)
	exporter := clients.NewExportClient(cfg.Collaborators.ExportURL, cfg.Collaborators.PreviewTimeout)

	videoSvc := video.NewService(db, minioStore, exporter, producer, cfg.MinIO.ImagesBucket, cfg.MinIO.VideosBucket)

	// Every stage gets its own durable consumer on the EVENTS stream, so
	// each one sees every event and filters for itself.
	stages := []pipeline.Stage{
		pipeline.NewBlurStage(minioStore, blurClient, cfg.MinIO.ImagesBucket),
		pipeline.NewEmbedStage(minioStore, imageEmbedder, db, cfg.MinIO.ImagesBucket),
		pipeline.NewResizeStage(minioStore, cfg.MinIO.ImagesBucket),
		video.NewProcessStage(videoSvc),
		video.NewFinishStage(videoSvc, cfg.MinIO.VideosBucket),
	}
	for _, stage := range stages {
		if err := consumer.Consume(ctx, "stage-"+stage.Name(), pipeline.Handler(stage), cfg.Pipeline.WorkerCount); err != nil {
			slog.Error("start stage consumer", "stage", stage.Name(), "error", err)
			os.Exit(1)
		}
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
