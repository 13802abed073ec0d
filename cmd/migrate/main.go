package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/your-org/limelapse/internal/config"
	"github.com/your-org/limelapse/internal/observability"
	"github.com/your-org/limelapse/migrations"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	dsn := cfg.Database.DSN()
	if *down {
		if err := migrations.Down(dsn); err != nil {
			slog.Error("migrate down", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations rolled back")
		return
	}

	if err := migrations.Up(dsn); err != nil {
		slog.Error("migrate up", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")
}
